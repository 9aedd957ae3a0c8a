package spdy

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"testing"
)

// headerBlock builds an uncompressed SPDY v3 name/value block.
func headerBlock(t *testing.T, pairs ...[2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(pairs)))
	buf.Write(n[:])
	for _, p := range pairs {
		for _, s := range p {
			binary.BigEndian.PutUint32(n[:], uint32(len(s)))
			buf.Write(n[:])
			buf.WriteString(s)
		}
	}
	return buf.Bytes()
}

func deflate(t *testing.T, dict, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevelDict(&buf, zlib.DefaultCompression, dict)
	if err != nil {
		t.Fatalf("zlib.NewWriterLevelDict() error = %v", err)
	}
	if _, err := zw.Write(raw); err != nil {
		t.Fatalf("compress header block: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close compressor: %v", err)
	}
	return buf.Bytes()
}

type emittedHeader struct {
	streamID    uint32
	name, value string
}

func collectHeaders(out *[]emittedHeader) HeaderEmitFunc {
	return func(streamID uint32, name, value string) {
		*out = append(*out, emittedHeader{streamID, name, value})
	}
}

func TestZlibHeaderDecoder_Roundtrip(t *testing.T) {
	pairs := [][2]string{
		{":status", "200"},
		{"content-type", "text/plain"},
		{"set-cookie", "a=1\x00b=2"},
	}
	compressed := deflate(t, nil, headerBlock(t, pairs...))

	var got []emittedHeader
	d := NewZlibHeaderDecoder(nil, collectHeaders(&got))

	// Feed the compressed block in small fragments.
	for len(compressed) > 0 {
		n := 3
		if n > len(compressed) {
			n = len(compressed)
		}
		consumed, err := d.Decode(compressed[:n], 1)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if consumed != n {
			t.Fatalf("Decode() consumed %d, want %d", consumed, n)
		}
		compressed = compressed[n:]
	}
	if err := d.EndBlock(1); err != nil {
		t.Fatalf("EndBlock() error = %v", err)
	}

	if len(got) != len(pairs) {
		t.Fatalf("decoded %d headers, want %d", len(got), len(pairs))
	}
	for i, p := range pairs {
		if got[i].streamID != 1 || got[i].name != p[0] || got[i].value != p[1] {
			t.Errorf("header %d = %+v, want stream 1 %q=%q", i, got[i], p[0], p[1])
		}
	}
}

func TestZlibHeaderDecoder_WithDictionary(t *testing.T) {
	dict := []byte("optionsgetheadpostputdeletetraceacceptaccept-charsetaccept-encoding")
	compressed := deflate(t, dict, headerBlock(t, [2]string{"accept-encoding", "gzip"}))

	var got []emittedHeader
	d := NewZlibHeaderDecoder(dict, collectHeaders(&got))

	if _, err := d.Decode(compressed, 7); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := d.EndBlock(7); err != nil {
		t.Fatalf("EndBlock() error = %v", err)
	}
	if len(got) != 1 || got[0].name != "accept-encoding" || got[0].value != "gzip" {
		t.Errorf("got %+v, want accept-encoding=gzip", got)
	}
}

func TestZlibHeaderDecoder_EmptyBlock(t *testing.T) {
	d := NewZlibHeaderDecoder(nil, nil)
	if err := d.EndBlock(1); err != nil {
		t.Errorf("EndBlock() on empty block error = %v", err)
	}
}

func TestZlibHeaderDecoder_SuccessiveBlocks(t *testing.T) {
	var got []emittedHeader
	d := NewZlibHeaderDecoder(nil, collectHeaders(&got))

	for i, name := range []string{"first", "second"} {
		streamID := uint32(2*i + 1)
		compressed := deflate(t, nil, headerBlock(t, [2]string{name, "v"}))
		if _, err := d.Decode(compressed, streamID); err != nil {
			t.Fatalf("Decode() block %d error = %v", i, err)
		}
		if err := d.EndBlock(streamID); err != nil {
			t.Fatalf("EndBlock() block %d error = %v", i, err)
		}
	}

	if len(got) != 2 || got[0].name != "first" || got[1].name != "second" {
		t.Errorf("got %+v, want one pair per block", got)
	}
	if got[0].streamID != 1 || got[1].streamID != 3 {
		t.Errorf("stream ids = %d, %d, want 1, 3", got[0].streamID, got[1].streamID)
	}
}

func TestZlibHeaderDecoder_Malformed(t *testing.T) {
	truncated := headerBlock(t, [2]string{"name", "value"})
	truncated = truncated[:len(truncated)-3]

	overlong := headerBlock(t, [2]string{"name", "value"})
	binary.BigEndian.PutUint32(overlong[4:], 1000)

	emptyName := headerBlock(t, [2]string{"", "value"})

	trailing := append(headerBlock(t, [2]string{"name", "value"}), 0xFF)

	tests := []struct {
		name string
		raw  []byte
	}{
		{"not zlib data", []byte("this is not compressed")},
		{"truncated pair", deflate(t, nil, truncated)},
		{"overlong name length", deflate(t, nil, overlong)},
		{"empty header name", deflate(t, nil, emptyName)},
		{"trailing bytes", deflate(t, nil, trailing)},
		{"short block", deflate(t, nil, []byte{0, 0})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewZlibHeaderDecoder(nil, nil)
			if _, err := d.Decode(tt.raw, 1); err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if err := d.EndBlock(1); err == nil {
				t.Error("EndBlock() = nil, want error")
			}
		})
	}
}

func TestDecoder_SynReplyWithHeaderBlock(t *testing.T) {
	var got []emittedHeader
	headers := NewZlibHeaderDecoder(nil, collectHeaders(&got))

	rec := &recordingDelegate{}
	d, err := NewDecoder(DefaultConfig(), rec, headers)
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}

	block := deflate(t, nil, headerBlock(t, [2]string{":status", "200"}, [2]string{":version", "HTTP/1.1"}))
	wire := controlFrame(t, 3, TypeSynReply, FlagFin, streamIDBody(t, 1, block))

	// Deliver one byte at a time; the block must survive fragmentation.
	var pending []byte
	for _, b := range wire {
		pending = append(pending, b)
		pending = pending[d.Decode(pending):]
	}
	if len(pending) != 0 {
		t.Fatalf("%d bytes left unconsumed", len(pending))
	}

	want := []string{"SYN_REPLY stream=1 fin=true", "HEADERS_END stream=1"}
	if fmt.Sprint(rec.events) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", rec.events, want)
	}
	if len(got) != 2 || got[0].name != ":status" || got[1].value != "HTTP/1.1" {
		t.Errorf("headers = %+v", got)
	}
}

func TestDecoder_InvalidHeaderBlock(t *testing.T) {
	rec := &recordingDelegate{}
	d, err := NewDecoder(DefaultConfig(), rec, NewZlibHeaderDecoder(nil, nil))
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}

	wire := controlFrame(t, 3, TypeSynReply, 0, streamIDBody(t, 1, []byte("garbage bytes")))
	if n := d.Decode(wire); n != len(wire) {
		t.Errorf("Decode() consumed %d, want %d", n, len(wire))
	}

	want := []string{"SYN_REPLY stream=1 fin=false", "ERROR invalid header block"}
	if fmt.Sprint(rec.events) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", rec.events, want)
	}
}
