package fuzzy

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"testing"

	"github.com/lizhengdao/whiskey/internal/spdy"
)

type countingDelegate struct {
	frames int
	errors int
	bytes  int
}

// Data chunks count by byte, not by callback: chunk boundaries depend
// legitimately on how the input was fragmented.
func (d *countingDelegate) ReadDataFrame(_ uint32, _ bool, data []byte) {
	d.bytes += len(data)
}
func (d *countingDelegate) ReadSynStreamFrame(_, _ uint32, _ uint8, _, _ bool) { d.frames++ }
func (d *countingDelegate) ReadSynReplyFrame(_ uint32, _ bool)                 { d.frames++ }
func (d *countingDelegate) ReadRstStreamFrame(_ uint32, _ uint32)              { d.frames++ }
func (d *countingDelegate) ReadSettingsFrame(_ bool)                           { d.frames++ }
func (d *countingDelegate) ReadSetting(_ uint32, _ uint32, _, _ bool)          {}
func (d *countingDelegate) ReadSettingsEnd()                                   {}
func (d *countingDelegate) ReadPingFrame(_ uint32)                             { d.frames++ }
func (d *countingDelegate) ReadGoAwayFrame(_ uint32, _ uint32)                 { d.frames++ }
func (d *countingDelegate) ReadHeadersFrame(_ uint32, _ bool)                  { d.frames++ }
func (d *countingDelegate) ReadHeadersEnd(_ uint32)                            {}
func (d *countingDelegate) ReadWindowUpdateFrame(_ uint32, _ uint32)           { d.frames++ }
func (d *countingDelegate) ReadFrameError(_ string)                            { d.errors++ }

// FuzzDecoder_ArbitraryBytes feeds arbitrary input to the decoder. It
// verifies that decoding never panics, never reports consuming more
// bytes than it was given, and at most one framing error is raised.
func FuzzDecoder_ArbitraryBytes(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0x80, 0x03, 0x00, 0x06, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x01})
	f.Add([]byte{0x00, 0x00, 0x00, 0x01, 0x01, 0x00, 0x00, 0x00})
	f.Add(bytes.Repeat([]byte{0xFF}, 64))

	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) > 1<<16 {
			t.Skip("input too long")
		}

		rec := &countingDelegate{}
		cfg := spdy.DefaultConfig()
		cfg.MinChunkSize = 1
		d, err := spdy.NewDecoder(cfg, rec, nil)
		if err != nil {
			t.Fatalf("NewDecoder: %v", err)
		}

		consumed := d.Decode(data)
		if consumed < 0 || consumed > len(data) {
			t.Errorf("Decode consumed %d of %d bytes", consumed, len(data))
		}
		if rec.errors > 1 {
			t.Errorf("decoder raised %d frame errors, the error state is terminal", rec.errors)
		}
	})
}

// FuzzDecoder_SplitEquivalence verifies that splitting the input at an
// arbitrary byte boundary produces the same frame and error counts as
// decoding it in one piece.
func FuzzDecoder_SplitEquivalence(f *testing.F) {
	ping := []byte{0x80, 0x03, 0x00, 0x06, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x01}
	f.Add(ping, 3)
	f.Add(append(ping, ping...), 13)
	f.Add([]byte{0x00, 0x00, 0x00, 0x01, 0x01, 0x00, 0x00, 0x02, 0xAA, 0xBB}, 9)

	f.Fuzz(func(t *testing.T, data []byte, split int) {
		if len(data) > 1<<16 {
			t.Skip("input too long")
		}
		if split < 0 || split > len(data) {
			t.Skip("split out of range")
		}

		cfg := spdy.DefaultConfig()
		cfg.MinChunkSize = 1

		whole := &countingDelegate{}
		d, err := spdy.NewDecoder(cfg, whole, nil)
		if err != nil {
			t.Fatalf("NewDecoder: %v", err)
		}
		d.Decode(data)

		parts := &countingDelegate{}
		d, err = spdy.NewDecoder(cfg, parts, nil)
		if err != nil {
			t.Fatalf("NewDecoder: %v", err)
		}
		pending := append([]byte{}, data[:split]...)
		pending = pending[d.Decode(pending):]
		pending = append(pending, data[split:]...)
		d.Decode(pending)

		if whole.frames != parts.frames || whole.errors != parts.errors || whole.bytes != parts.bytes {
			t.Errorf("split decode diverged: whole=%+v parts=%+v", whole, parts)
		}
	})
}

// FuzzZlibHeaderDecoder verifies that arbitrary compressed input never
// panics the header block decoder.
func FuzzZlibHeaderDecoder(f *testing.F) {
	var valid bytes.Buffer
	zw := zlib.NewWriter(&valid)
	block := make([]byte, 4)
	binary.BigEndian.PutUint32(block, 0)
	zw.Write(block)
	zw.Close()

	f.Add(valid.Bytes())
	f.Add([]byte{})
	f.Add([]byte("not zlib"))
	f.Add(bytes.Repeat([]byte{0x78}, 32))

	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) > 1<<16 {
			t.Skip("input too long")
		}

		d := spdy.NewZlibHeaderDecoder(nil, func(_ uint32, _, _ string) {})
		consumed, err := d.Decode(data, 1)
		if err != nil {
			return
		}
		if consumed != len(data) {
			t.Errorf("Decode consumed %d of %d bytes", consumed, len(data))
		}
		_ = d.EndBlock(1)
	})
}
