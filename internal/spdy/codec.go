// Package spdy implements incremental decoding of the SPDY wire framing
// format. The decoder is push-based: callers feed it byte buffers as they
// arrive from the transport and it invokes a delegate callback per decoded
// frame unit.
package spdy

import "encoding/binary"

// Frame type constants. Control frames carry the type in bytes 2-3 of the
// common header; data frames have no explicit type on the wire.
const (
	TypeData         uint16 = 0
	TypeSynStream    uint16 = 1
	TypeSynReply     uint16 = 2
	TypeRstStream    uint16 = 3
	TypeSettings     uint16 = 4
	TypePing         uint16 = 6
	TypeGoAway       uint16 = 7
	TypeHeaders      uint16 = 8
	TypeWindowUpdate uint16 = 9
)

// Control frame flags.
const (
	FlagFin            uint8 = 0x01
	FlagUnidirectional uint8 = 0x02
)

// Data frame flags.
const (
	FlagDataFin uint8 = 0x01
)

// SETTINGS frame and per-entry flags.
const (
	FlagSettingsClearSettings uint8 = 0x01
	FlagSettingsPersistValue  uint8 = 0x01
	FlagSettingsPersisted     uint8 = 0x02
)

// Common header layout. The header is 8 bytes for both control and data
// frames; flags and the 24-bit length sit at the same offsets in both.
const (
	headerSize   = 8
	typeOffset   = 2
	flagsOffset  = 4
	lengthOffset = 5
)

// controlBit marks byte 0 of a control frame; data frames have it clear.
const controlBit = 0x80

// SessionStreamID is the reserved stream identifier for session-scoped
// control frames.
const SessionStreamID uint32 = 0

// maxStreamID masks off the reserved top bit of 4-byte stream id fields.
const maxStreamID = 0x7fffffff

func readUint16(p []byte) uint16 {
	return binary.BigEndian.Uint16(p)
}

func readUint24(p []byte) uint32 {
	return uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2])
}

func readUint32(p []byte) uint32 {
	return binary.BigEndian.Uint32(p)
}

// readStreamID reads a 4-byte stream id field, masking the reserved bit.
func readStreamID(p []byte) uint32 {
	return readUint32(p) & maxStreamID
}

func hasFlag(flags, flag uint8) bool {
	return flags&flag != 0
}
