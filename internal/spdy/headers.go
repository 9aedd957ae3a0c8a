package spdy

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
)

// HeaderBlockDecoder decodes the compressed name/value block carried by
// SYN_STREAM, SYN_REPLY and HEADERS frames. The frame decoder hands it
// successive byte ranges bounded by the remaining declared frame length;
// the implementation reports how many bytes it consumed and emits decoded
// pairs through whatever callback it was constructed with. Any error
// aborts the frame stream.
type HeaderBlockDecoder interface {
	Decode(p []byte, streamID uint32) (int, error)

	// EndBlock signals that the block for the current frame is complete.
	EndBlock(streamID uint32) error
}

// discardHeaderBlocks consumes header blocks without decoding them.
type discardHeaderBlocks struct{}

func (discardHeaderBlocks) Decode(p []byte, _ uint32) (int, error) { return len(p), nil }
func (discardHeaderBlocks) EndBlock(_ uint32) error                { return nil }

// HeaderEmitFunc receives one decoded header name/value pair. A value may
// contain NUL-separated sub-values per the SPDY header block format.
type HeaderEmitFunc func(streamID uint32, name, value string)

// ZlibHeaderDecoder decodes zlib-compressed SPDY v3 name/value blocks.
// It buffers the compressed block and inflates it once the owning frame
// ends, so pairs are emitted from EndBlock. Each block is inflated as an
// independent zlib stream; sessions that compress header blocks with a
// shared context own a decoder per direction and supply the protocol
// dictionary.
type ZlibHeaderDecoder struct {
	dict       []byte
	emit       HeaderEmitFunc
	compressed bytes.Buffer
}

// NewZlibHeaderDecoder creates a header block decoder. dict is the zlib
// preset dictionary negotiated for the session (nil for none); emit
// receives each decoded pair.
func NewZlibHeaderDecoder(dict []byte, emit HeaderEmitFunc) *ZlibHeaderDecoder {
	return &ZlibHeaderDecoder{dict: dict, emit: emit}
}

// Decode buffers compressed bytes; it always consumes the full range.
func (d *ZlibHeaderDecoder) Decode(p []byte, _ uint32) (int, error) {
	d.compressed.Write(p)
	return len(p), nil
}

// EndBlock inflates and parses the buffered block, emitting each pair.
func (d *ZlibHeaderDecoder) EndBlock(streamID uint32) error {
	if d.compressed.Len() == 0 {
		return nil
	}
	defer d.compressed.Reset()

	var (
		zr  io.ReadCloser
		err error
	)
	if len(d.dict) > 0 {
		zr, err = zlib.NewReaderDict(&d.compressed, d.dict)
	} else {
		zr, err = zlib.NewReader(&d.compressed)
	}
	if err != nil {
		return fmt.Errorf("open header block: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	// Header blocks are flushed, not closed, so the deflate stream may
	// lack a final block marker.
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("inflate header block: %w", err)
	}

	return d.parseBlock(raw, streamID)
}

// parseBlock walks the SPDY v3 name/value block layout: a 4-byte pair
// count followed by 4-byte-length-prefixed names and values.
func (d *ZlibHeaderDecoder) parseBlock(raw []byte, streamID uint32) error {
	if len(raw) < 4 {
		return errors.New("truncated header block")
	}
	count := int(readUint32(raw))
	raw = raw[4:]

	for i := 0; i < count; i++ {
		name, rest, err := readLengthPrefixed(raw)
		if err != nil {
			return fmt.Errorf("header %d name: %w", i, err)
		}
		if len(name) == 0 {
			return fmt.Errorf("header %d has an empty name", i)
		}
		value, rest, err := readLengthPrefixed(rest)
		if err != nil {
			return fmt.Errorf("header %d value: %w", i, err)
		}
		raw = rest

		if d.emit != nil {
			d.emit(streamID, string(name), string(value))
		}
	}
	if len(raw) != 0 {
		return errors.New("trailing bytes after header block")
	}
	return nil
}

func readLengthPrefixed(p []byte) ([]byte, []byte, error) {
	if len(p) < 4 {
		return nil, nil, errors.New("truncated length prefix")
	}
	n := int(readUint32(p))
	p = p[4:]
	if n < 0 || n > len(p) {
		return nil, nil, fmt.Errorf("declared length %d exceeds remaining %d bytes", n, len(p))
	}
	return p[:n], p[n:], nil
}
