package envelope

// SourceKind identifies the component that produced a record.
type SourceKind uint8

const (
	SourceUnknown SourceKind = iota
	SourceIngress
	SourceProcessor
	SourceControlPlane
)

func (k SourceKind) String() string {
	switch k {
	case SourceIngress:
		return "ingress"
	case SourceProcessor:
		return "processor"
	case SourceControlPlane:
		return "control_plane"
	default:
		return "unknown"
	}
}

// DestKind identifies how a record is routed.
type DestKind uint8

const (
	DestUnknown DestKind = iota
	// DestProcessor targets the partition processor owning PartitionKey.
	DestProcessor
	// DestShuffle targets the outbound shuffle of the producing partition.
	DestShuffle
)

func (k DestKind) String() string {
	switch k {
	case DestProcessor:
		return "processor"
	case DestShuffle:
		return "shuffle"
	default:
		return "unknown"
	}
}

// Source describes where a record came from.
type Source struct {
	Kind        SourceKind `msgpack:"kind"`
	NodeID      string     `msgpack:"node"`
	PartitionID uint64     `msgpack:"partition"`
	LeaderEpoch uint64     `msgpack:"epoch"`
}

// Destination is the routing target of a record.
type Destination struct {
	Kind         DestKind `msgpack:"kind"`
	PartitionKey uint64   `msgpack:"pkey"`
}

// Dedup carries the producer's own sequence so consumers can drop
// duplicates created by at-least-once producers.
type Dedup struct {
	Producer string `msgpack:"producer"`
	Sequence uint64 `msgpack:"seq"`
}

// Header is the routing and causal metadata of a record.
type Header struct {
	Source      Source      `msgpack:"source"`
	Dest        Destination `msgpack:"dest"`
	CreatedAtMs int64       `msgpack:"created"`
	Dedup       *Dedup      `msgpack:"dedup"`
}

// Envelope is the unit stored per log record.
type Envelope struct {
	Header  Header
	Payload []byte
}
