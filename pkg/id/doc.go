// Package id generates the 128-bit producer identifiers carried by append
// sequence tokens.
//
// # Format
//
// 16 bytes big-endian: [8 bytes ms timestamp][4 bytes random instance][4
// bytes counter]. Byte-wise order is chronological for one generator, and
// the instance word separates generators started in the same millisecond.
//
// Usage
//
//	g := id.NewGenerator()
//	producer := g.Next()
//	s := producer.String() // hex
package id
