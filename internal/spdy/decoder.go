package spdy

import (
	"errors"
	"log"
)

// decoder states. The decoder suspends in whichever state it was in when
// the buffer ran out of complete fields and resumes there on the next call.
type state int

const (
	stateReadCommonHeader state = iota
	stateReadDataFrame
	stateReadSynStreamFrame
	stateReadSynReplyFrame
	stateReadRstStreamFrame
	stateReadSettingsFrame
	stateReadSetting
	stateReadPingFrame
	stateReadGoAwayFrame
	stateReadHeadersFrame
	stateReadWindowUpdateFrame
	stateReadHeaderBlock
	stateDiscardFrame
	stateFrameError
)

var errNilDelegate = errors.New("spdy: delegate must not be nil")

// Decoder is an incremental SPDY frame decoder. It parses frames out of
// byte buffers that may contain partial frames or several frames at once
// and invokes the delegate once per decoded unit.
//
// A Decoder has no internal locking; callers must serialize calls to
// Decode. It never blocks and never retains a reference to the caller's
// buffer past the call.
type Decoder struct {
	delegate     FrameDelegate
	headers      HeaderBlockDecoder
	logger       *log.Logger
	version      uint16
	maxChunkSize int
	minChunkSize int

	state state

	// Common header scratch fields for the frame currently being decoded.
	flags       uint8
	length      int
	streamID    uint32
	numSettings int
}

// NewDecoder creates a decoder for the configured SPDY version. The
// headers decoder handles the compressed name/value blocks of SYN_STREAM,
// SYN_REPLY and HEADERS frames; passing nil skips header blocks without
// decoding them.
func NewDecoder(cfg Config, delegate FrameDelegate, headers HeaderBlockDecoder) (*Decoder, error) {
	if delegate == nil {
		return nil, errNilDelegate
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if headers == nil {
		headers = discardHeaderBlocks{}
	}
	return &Decoder{
		delegate:     delegate,
		headers:      headers,
		logger:       cfg.Logger,
		version:      cfg.Version,
		maxChunkSize: cfg.MaxChunkSize,
		minChunkSize: cfg.MinChunkSize,
		state:        stateReadCommonHeader,
	}, nil
}

// Decode consumes as many complete fields from p as are available, firing
// one delegate callback per decoded unit, and returns the number of bytes
// consumed. Whenever insufficient bytes remain to decode the current unit
// it returns with the cursor positioned at the start of the unresolved
// unit; the caller re-presents the unconsumed tail, plus any newly arrived
// bytes, on the next call.
func (d *Decoder) Decode(p []byte) int {
	pos := 0

	for {
		switch d.state {
		case stateReadCommonHeader:
			if len(p)-pos < headerSize {
				return pos
			}

			frame := p[pos : pos+headerSize]
			pos += headerSize

			var version, frameType uint16
			if frame[0]&controlBit != 0 {
				version = readUint16(frame) & 0x7fff
				frameType = readUint16(frame[typeOffset:])
				d.streamID = SessionStreamID
			} else {
				version = d.version // data frames carry no version
				frameType = TypeData
				d.streamID = readStreamID(frame)
			}
			d.flags = frame[flagsOffset]
			d.length = int(readUint24(frame[lengthOffset:]))

			// Version mismatch is reported before structural validity.
			if version != d.version {
				d.state = stateFrameError
				d.delegate.ReadFrameError("invalid SPDY version")
			} else if !validFrameHeader(d.streamID, frameType, d.flags, d.length) {
				d.state = stateFrameError
				d.delegate.ReadFrameError("invalid frame header")
			} else {
				d.state = nextState(frameType, d.length)
			}

		case stateReadDataFrame:
			if d.length == 0 {
				d.state = stateReadCommonHeader
				d.delegate.ReadDataFrame(d.streamID, hasFlag(d.flags, FlagDataFin), nil)
				break
			}

			// Emit chunks that do not exceed maxChunkSize and, unless the
			// frame remainder is all that is left, reach minChunkSize.
			toRead := d.maxChunkSize
			if d.length < toRead {
				toRead = d.length
			}
			if avail := len(p) - pos; avail < toRead {
				if avail < d.minChunkSize {
					return pos
				}
				toRead = avail
			}

			// The source buffer is transient; the chunk must own its bytes.
			chunk := make([]byte, toRead)
			copy(chunk, p[pos:pos+toRead])
			pos += toRead
			d.length -= toRead

			if d.length == 0 {
				d.state = stateReadCommonHeader
			}
			last := d.length == 0 && hasFlag(d.flags, FlagDataFin)

			d.delegate.ReadDataFrame(d.streamID, last, chunk)

		case stateReadSynStreamFrame:
			if len(p)-pos < 10 {
				return pos
			}

			d.streamID = readStreamID(p[pos:])
			associatedStreamID := readStreamID(p[pos+4:])
			priority := p[pos+8] >> 5 // top 3 bits
			last := hasFlag(d.flags, FlagFin)
			unidirectional := hasFlag(d.flags, FlagUnidirectional)
			pos += 10
			d.length -= 10

			if d.streamID == 0 {
				d.state = stateFrameError
				d.delegate.ReadFrameError("invalid SYN_STREAM frame")
			} else {
				d.state = stateReadHeaderBlock
				d.delegate.ReadSynStreamFrame(d.streamID, associatedStreamID, priority, last, unidirectional)
			}

		case stateReadSynReplyFrame:
			if len(p)-pos < 4 {
				return pos
			}

			d.streamID = readStreamID(p[pos:])
			last := hasFlag(d.flags, FlagFin)
			pos += 4
			d.length -= 4

			if d.streamID == 0 {
				d.state = stateFrameError
				d.delegate.ReadFrameError("invalid SYN_REPLY frame")
			} else {
				d.state = stateReadHeaderBlock
				d.delegate.ReadSynReplyFrame(d.streamID, last)
			}

		case stateReadRstStreamFrame:
			if len(p)-pos < 8 {
				return pos
			}

			d.streamID = readStreamID(p[pos:])
			statusCode := readUint32(p[pos+4:])
			pos += 8

			if d.streamID == 0 || statusCode == 0 {
				d.state = stateFrameError
				d.delegate.ReadFrameError("invalid RST_STREAM frame")
			} else {
				d.state = stateReadCommonHeader
				d.delegate.ReadRstStreamFrame(d.streamID, statusCode)
			}

		case stateReadSettingsFrame:
			if len(p)-pos < 4 {
				return pos
			}

			clearPersisted := hasFlag(d.flags, FlagSettingsClearSettings)
			d.numSettings = int(readUint32(p[pos:]) & maxStreamID)
			pos += 4
			d.length -= 4

			// Each ID/value entry is 8 bytes; the declared length must
			// cover exactly the announced number of entries.
			if d.length&0x07 != 0 || d.length>>3 != d.numSettings {
				d.state = stateFrameError
				d.delegate.ReadFrameError("invalid SETTINGS frame length")
			} else {
				d.state = stateReadSetting
				d.delegate.ReadSettingsFrame(clearPersisted)
			}

		case stateReadSetting:
			if d.numSettings == 0 {
				d.state = stateReadCommonHeader
				d.delegate.ReadSettingsEnd()
				break
			}

			if len(p)-pos < 8 {
				return pos
			}

			settingsFlags := p[pos]
			id := readUint24(p[pos+1:])
			value := readUint32(p[pos+4:])
			persistValue := hasFlag(settingsFlags, FlagSettingsPersistValue)
			persisted := hasFlag(settingsFlags, FlagSettingsPersisted)
			pos += 8
			d.numSettings--

			d.delegate.ReadSetting(id, value, persistValue, persisted)

		case stateReadPingFrame:
			if len(p)-pos < 4 {
				return pos
			}

			id := readUint32(p[pos:])
			pos += 4

			d.state = stateReadCommonHeader
			d.delegate.ReadPingFrame(id)

		case stateReadGoAwayFrame:
			if len(p)-pos < 8 {
				return pos
			}

			lastGoodStreamID := readStreamID(p[pos:])
			statusCode := readUint32(p[pos+4:])
			pos += 8

			d.state = stateReadCommonHeader
			d.delegate.ReadGoAwayFrame(lastGoodStreamID, statusCode)

		case stateReadHeadersFrame:
			if len(p)-pos < 4 {
				return pos
			}

			d.streamID = readStreamID(p[pos:])
			last := hasFlag(d.flags, FlagFin)
			pos += 4
			d.length -= 4

			if d.streamID == 0 {
				d.state = stateFrameError
				d.delegate.ReadFrameError("invalid HEADERS frame")
			} else {
				d.state = stateReadHeaderBlock
				d.delegate.ReadHeadersFrame(d.streamID, last)
			}

		case stateReadWindowUpdateFrame:
			if len(p)-pos < 8 {
				return pos
			}

			d.streamID = readStreamID(p[pos:])
			deltaWindowSize := readUint32(p[pos+4:]) & maxStreamID
			pos += 8

			if deltaWindowSize == 0 {
				d.state = stateFrameError
				d.delegate.ReadFrameError("invalid WINDOW_UPDATE frame")
			} else {
				d.state = stateReadCommonHeader
				d.delegate.ReadWindowUpdateFrame(d.streamID, deltaWindowSize)
			}

		case stateReadHeaderBlock:
			if d.length == 0 {
				d.state = stateReadCommonHeader
				if err := d.headers.EndBlock(d.streamID); err != nil {
					d.logger.Printf("spdy: header block for stream %d: %v", d.streamID, err)
					d.state = stateFrameError
					d.delegate.ReadFrameError("invalid header block")
					break
				}
				d.delegate.ReadHeadersEnd(d.streamID)
				break
			}

			if pos == len(p) {
				return pos
			}

			headerBytes := len(p) - pos
			if d.length < headerBytes {
				headerBytes = d.length
			}

			consumed, err := d.headers.Decode(p[pos:pos+headerBytes], d.streamID)
			if consumed < 0 || consumed > headerBytes {
				consumed = headerBytes
			}
			pos += consumed
			d.length -= consumed
			if err != nil {
				d.logger.Printf("spdy: header block for stream %d: %v", d.streamID, err)
				d.state = stateFrameError
				d.delegate.ReadFrameError("invalid header block")
			}

		case stateDiscardFrame:
			numBytes := len(p) - pos
			if d.length < numBytes {
				numBytes = d.length
			}
			pos += numBytes
			d.length -= numBytes
			if d.length == 0 {
				d.state = stateReadCommonHeader
				break
			}
			return pos

		case stateFrameError:
			return len(p)
		}
	}
}

// nextState dispatches a validated common header to its type-specific
// state. Unrecognized frame types are skipped over in their entirety.
func nextState(frameType uint16, length int) state {
	switch frameType {
	case TypeData:
		return stateReadDataFrame
	case TypeSynStream:
		return stateReadSynStreamFrame
	case TypeSynReply:
		return stateReadSynReplyFrame
	case TypeRstStream:
		return stateReadRstStreamFrame
	case TypeSettings:
		return stateReadSettingsFrame
	case TypePing:
		return stateReadPingFrame
	case TypeGoAway:
		return stateReadGoAwayFrame
	case TypeHeaders:
		return stateReadHeadersFrame
	case TypeWindowUpdate:
		return stateReadWindowUpdateFrame
	default:
		if length != 0 {
			return stateDiscardFrame
		}
		return stateReadCommonHeader
	}
}

// validFrameHeader enforces the per-type minimum or exact declared length
// and the non-zero stream id rule for data frames.
func validFrameHeader(streamID uint32, frameType uint16, flags uint8, length int) bool {
	switch frameType {
	case TypeData:
		return streamID != 0
	case TypeSynStream:
		return length >= 10
	case TypeSynReply:
		return length >= 4
	case TypeRstStream:
		return flags == 0 && length == 8
	case TypeSettings:
		return length >= 4
	case TypePing:
		return length == 4
	case TypeGoAway:
		return length == 8
	case TypeHeaders:
		return length >= 4
	case TypeWindowUpdate:
		return length == 8
	default:
		return true
	}
}
