// Package main provides spdydump, a debugging tool that decodes a raw
// SPDY frame capture and prints one line per decoded frame unit.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/lizhengdao/whiskey/internal/spdy"
)

type printingDelegate struct{}

func (printingDelegate) ReadDataFrame(streamID uint32, last bool, data []byte) {
	fmt.Printf("DATA          stream=%d last=%t len=%d\n", streamID, last, len(data))
}

func (printingDelegate) ReadSynStreamFrame(streamID, associatedStreamID uint32, priority uint8, last, unidirectional bool) {
	fmt.Printf("SYN_STREAM    stream=%d associated=%d priority=%d fin=%t unidirectional=%t\n",
		streamID, associatedStreamID, priority, last, unidirectional)
}

func (printingDelegate) ReadSynReplyFrame(streamID uint32, last bool) {
	fmt.Printf("SYN_REPLY     stream=%d fin=%t\n", streamID, last)
}

func (printingDelegate) ReadRstStreamFrame(streamID uint32, statusCode uint32) {
	fmt.Printf("RST_STREAM    stream=%d status=%d\n", streamID, statusCode)
}

func (printingDelegate) ReadSettingsFrame(clearPersisted bool) {
	fmt.Printf("SETTINGS      clearPersisted=%t\n", clearPersisted)
}

func (printingDelegate) ReadSetting(id uint32, value uint32, persistValue, persisted bool) {
	fmt.Printf("  SETTING     id=%d value=%d persistValue=%t persisted=%t\n", id, value, persistValue, persisted)
}

func (printingDelegate) ReadSettingsEnd() {}

func (printingDelegate) ReadPingFrame(id uint32) {
	fmt.Printf("PING          id=%d\n", id)
}

func (printingDelegate) ReadGoAwayFrame(lastGoodStreamID uint32, statusCode uint32) {
	fmt.Printf("GOAWAY        lastGoodStream=%d status=%d\n", lastGoodStreamID, statusCode)
}

func (printingDelegate) ReadHeadersFrame(streamID uint32, last bool) {
	fmt.Printf("HEADERS       stream=%d fin=%t\n", streamID, last)
}

func (printingDelegate) ReadHeadersEnd(streamID uint32) {}

func (printingDelegate) ReadWindowUpdateFrame(streamID uint32, deltaWindowSize uint32) {
	fmt.Printf("WINDOW_UPDATE stream=%d delta=%d\n", streamID, deltaWindowSize)
}

func (printingDelegate) ReadFrameError(reason string) {
	fmt.Printf("FRAME_ERROR   %s\n", reason)
}

func main() {
	version := flag.Uint("version", 3, "SPDY protocol version expected on the wire")
	headers := flag.Bool("headers", false, "decode and print header blocks (plain zlib, no dictionary)")
	flag.Parse()

	in := os.Stdin
	if flag.NArg() > 0 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		in = f
	}

	cfg := spdy.DefaultConfig()
	cfg.Version = uint16(*version)
	cfg.Logger = log.New(os.Stderr, "spdydump: ", 0)

	var headerDecoder spdy.HeaderBlockDecoder
	if *headers {
		headerDecoder = spdy.NewZlibHeaderDecoder(nil, func(streamID uint32, name, value string) {
			fmt.Printf("  HEADER      stream=%d %s: %s\n", streamID, name, value)
		})
	}

	decoder, err := spdy.NewDecoder(cfg, printingDelegate{}, headerDecoder)
	if err != nil {
		log.Fatal(err)
	}

	var pending []byte
	buf := make([]byte, 4096)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			consumed := decoder.Decode(pending)
			pending = pending[consumed:]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatal(err)
		}
	}

	if len(pending) > 0 {
		fmt.Fprintf(os.Stderr, "spdydump: %d trailing bytes of an incomplete frame\n", len(pending))
	}
}
