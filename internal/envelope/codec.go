package envelope

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// FormatVersion is the newest envelope format this package writes and reads.
const FormatVersion uint8 = 1

const (
	magic0 = 'B'
	magic1 = 'E'

	flagZstd  uint8 = 1 << 0
	knownMask       = flagZstd

	// magic(2) + version(1) + flags(1) + headerLen(>=1) + crc(4)
	minLen = 2 + 1 + 1 + 1 + 4
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Options tunes a Codec.
type Options struct {
	// CompressThreshold compresses payloads of at least this many bytes.
	// Zero or negative disables compression on encode.
	CompressThreshold int
}

// Codec encodes and decodes envelopes. It is safe for concurrent use.
type Codec struct {
	opts Options
	zenc *zstd.Encoder
	zdec *zstd.Decoder
}

// NewCodec builds a codec.
func NewCodec(opts Options) (*Codec, error) {
	zenc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1), zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("envelope: zstd encoder: %w", err)
	}
	zdec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		zenc.Close()
		return nil, fmt.Errorf("envelope: zstd decoder: %w", err)
	}
	return &Codec{opts: opts, zenc: zenc, zdec: zdec}, nil
}

// MustNewCodec is NewCodec for package-level defaults and tests.
func MustNewCodec(opts Options) *Codec {
	c, err := NewCodec(opts)
	if err != nil {
		panic(err)
	}
	return c
}

// Close releases the compression resources.
func (c *Codec) Close() {
	c.zenc.Close()
	c.zdec.Close()
}

func marshalHeader(h Header) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseArrayEncodedStructs(true)
	enc.UseCompactInts(true)
	if err := enc.Encode(&h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode serializes env.
func (c *Codec) Encode(env Envelope) ([]byte, error) {
	hdr, err := marshalHeader(env.Header)
	if err != nil {
		return nil, fmt.Errorf("envelope: encode header: %w", err)
	}
	payload := env.Payload
	var flags uint8
	if c.opts.CompressThreshold > 0 && len(payload) >= c.opts.CompressThreshold {
		payload = c.zenc.EncodeAll(payload, make([]byte, 0, len(payload)/2))
		flags |= flagZstd
	}

	out := make([]byte, 0, minLen+binary.MaxVarintLen64+len(hdr)+len(payload))
	out = append(out, magic0, magic1, FormatVersion, flags)
	out = binary.AppendUvarint(out, uint64(len(hdr)))
	out = append(out, hdr...)
	out = append(out, payload...)
	crc := crc32.Checksum(out[2:], castagnoli)
	out = binary.BigEndian.AppendUint32(out, crc)
	return out, nil
}

// Decode parses bytes produced by Encode.
func (c *Codec) Decode(b []byte) (Envelope, error) {
	if len(b) < minLen {
		return Envelope{}, corrupt(fmt.Sprintf("short buffer (%d bytes)", len(b)), nil)
	}
	if b[0] != magic0 || b[1] != magic1 {
		return Envelope{}, corrupt("bad magic", nil)
	}
	version := b[2]
	if version == 0 {
		return Envelope{}, corrupt("format version 0", nil)
	}
	if version > FormatVersion {
		return Envelope{}, &DecodeError{Kind: DecodeUnsupportedVersion, Version: version}
	}
	body, sum := b[:len(b)-4], binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Checksum(body[2:], castagnoli) != sum {
		return Envelope{}, corrupt("checksum mismatch", nil)
	}
	flags := b[3]
	if flags&^knownMask != 0 {
		return Envelope{}, corrupt(fmt.Sprintf("unknown flags %#x", flags), nil)
	}
	hlen, n := binary.Uvarint(body[4:])
	if n <= 0 {
		return Envelope{}, corrupt("bad header length", nil)
	}
	start := 4 + n
	if hlen > uint64(len(body)-start) {
		return Envelope{}, corrupt("header overruns buffer", nil)
	}
	end := start + int(hlen)

	var env Envelope
	if err := msgpack.Unmarshal(body[start:end], &env.Header); err != nil {
		return Envelope{}, corrupt("header", err)
	}
	payload := body[end:]
	if flags&flagZstd != 0 {
		p, err := c.zdec.DecodeAll(payload, nil)
		if err != nil {
			return Envelope{}, corrupt("payload", err)
		}
		env.Payload = p
	} else {
		env.Payload = append([]byte(nil), payload...)
	}
	return env, nil
}
