package rsp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lizhengdao/whiskey/internal/spdy"
)

// ErrSessionClosed fails in-flight bodies when the peer goes away before
// their streams finished.
var ErrSessionClosed = errors.New("rsp: session closed before stream completed")

// StreamError reports a stream terminated by the peer with RST_STREAM.
type StreamError struct {
	StreamID   uint32
	StatusCode uint32
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("rsp: stream %d reset by peer, status %d", e.StreamID, e.StatusCode)
}

// Assembler is the frame decoder's delegate for an in-flight exchange.
// It routes decoded body bytes into one BodyFuture per stream, marks
// end-of-stream completion, aborts bodies on reset or framing errors,
// and leaves session bookkeeping (settings, pings, window accounting) to
// the session layer that owns the decoder.
//
// Like the decoder that drives it, an Assembler expects callbacks from
// one goroutine at a time; the consumer-facing futures it hands out are
// fully concurrent.
type Assembler struct {
	tracer trace.Tracer
	logger *log.Logger

	mu      sync.Mutex
	streams map[uint32]*streamState
}

type streamState struct {
	body    *BodyFuture
	headers [][2]string
	span    trace.Span
	chunks  int
	bytes   int64
}

var _ spdy.FrameDelegate = (*Assembler)(nil)

// NewAssembler creates an assembler. logger may be nil.
func NewAssembler(logger *log.Logger) *Assembler {
	return &Assembler{
		tracer:  otel.Tracer("whiskey/rsp"),
		logger:  logger,
		streams: make(map[uint32]*streamState),
	}
}

// Body returns the body future for a stream, creating it if the stream
// has not been seen yet (a consumer may attach before the first frame).
func (a *Assembler) Body(streamID uint32) *BodyFuture {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream(streamID).body
}

// Headers returns a copy of the header pairs decoded so far for a stream.
func (a *Assembler) Headers(streamID uint32) [][2]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stream(streamID)
	headers := make([][2]string, len(s.headers))
	copy(headers, s.headers)
	return headers
}

// EmitHeader records one decoded header pair for a stream. It has the
// shape of spdy.HeaderEmitFunc so it can be wired straight into a
// ZlibHeaderDecoder.
func (a *Assembler) EmitHeader(streamID uint32, name, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stream(streamID)
	s.headers = append(s.headers, [2]string{name, value})
}

// stream returns the state for streamID, creating it if needed. Callers
// hold a.mu.
func (a *Assembler) stream(streamID uint32) *streamState {
	s, ok := a.streams[streamID]
	if !ok {
		s = &streamState{body: NewBodyFuture(a.logger)}
		a.streams[streamID] = s
	}
	return s
}

func (a *Assembler) ReadDataFrame(streamID uint32, last bool, data []byte) {
	a.mu.Lock()
	s := a.stream(streamID)
	if len(data) > 0 {
		// Span covers first chunk through stream completion.
		if s.span == nil {
			_, s.span = a.tracer.Start(context.Background(), "rsp.body",
				trace.WithAttributes(attribute.Int64("stream_id", int64(streamID))))
		}
		s.chunks++
		s.bytes += int64(len(data))
	}
	a.mu.Unlock()

	if len(data) > 0 {
		s.body.Provide(data)
	}
	if last {
		a.finishStream(streamID)
	}
}

func (a *Assembler) ReadSynStreamFrame(streamID, associatedStreamID uint32, priority uint8, last, _ bool) {
	a.debugf("rsp: pushed stream %d (associated %d, priority %d)", streamID, associatedStreamID, priority)
	a.mu.Lock()
	a.stream(streamID)
	a.mu.Unlock()
	if last {
		a.finishStream(streamID)
	}
}

func (a *Assembler) ReadSynReplyFrame(streamID uint32, last bool) {
	a.mu.Lock()
	a.stream(streamID)
	a.mu.Unlock()
	if last {
		a.finishStream(streamID)
	}
}

func (a *Assembler) ReadRstStreamFrame(streamID uint32, statusCode uint32) {
	a.failStream(streamID, &StreamError{StreamID: streamID, StatusCode: statusCode})
}

func (a *Assembler) ReadSettingsFrame(clearPersisted bool) {
	a.debugf("rsp: settings frame, clearPersisted=%t", clearPersisted)
}

func (a *Assembler) ReadSetting(id uint32, value uint32, persistValue, persisted bool) {
	a.debugf("rsp: setting %d=%d persistValue=%t persisted=%t", id, value, persistValue, persisted)
}

func (a *Assembler) ReadSettingsEnd() {}

func (a *Assembler) ReadPingFrame(id uint32) {
	a.debugf("rsp: ping %d", id)
}

func (a *Assembler) ReadGoAwayFrame(lastGoodStreamID uint32, statusCode uint32) {
	a.debugf("rsp: goaway, last good stream %d, status %d", lastGoodStreamID, statusCode)
	a.mu.Lock()
	var abandoned []uint32
	for id := range a.streams {
		if id > lastGoodStreamID {
			abandoned = append(abandoned, id)
		}
	}
	a.mu.Unlock()
	for _, id := range abandoned {
		a.failStream(id, ErrSessionClosed)
	}
}

func (a *Assembler) ReadHeadersFrame(streamID uint32, last bool) {
	a.mu.Lock()
	a.stream(streamID)
	a.mu.Unlock()
	if last {
		a.finishStream(streamID)
	}
}

func (a *Assembler) ReadHeadersEnd(streamID uint32) {
	a.debugf("rsp: headers complete for stream %d", streamID)
}

func (a *Assembler) ReadWindowUpdateFrame(streamID uint32, deltaWindowSize uint32) {
	a.debugf("rsp: window update for stream %d, delta %d", streamID, deltaWindowSize)
}

// ReadFrameError aborts every in-flight body: after a framing error the
// decoder emits nothing further, so none of them can complete.
func (a *Assembler) ReadFrameError(reason string) {
	a.debugf("rsp: frame error: %s", reason)
	err := &spdy.ProtocolError{Reason: reason}

	a.mu.Lock()
	ids := make([]uint32, 0, len(a.streams))
	for id := range a.streams {
		ids = append(ids, id)
	}
	a.mu.Unlock()

	for _, id := range ids {
		a.failStream(id, err)
	}
}

// finishStream marks end-of-stream: the body future resolves and the
// stream's span closes out.
func (a *Assembler) finishStream(streamID uint32) {
	a.mu.Lock()
	s := a.stream(streamID)
	a.mu.Unlock()

	if s.body.Finish() {
		a.endSpan(s, codes.Ok, "")
	}
}

func (a *Assembler) failStream(streamID uint32, err error) {
	a.mu.Lock()
	s, ok := a.streams[streamID]
	a.mu.Unlock()
	if !ok {
		return
	}

	if s.body.Fail(err) {
		a.endSpan(s, codes.Error, err.Error())
	}
}

func (a *Assembler) endSpan(s *streamState, code codes.Code, description string) {
	a.mu.Lock()
	span := s.span
	s.span = nil
	chunks, bytes := s.chunks, s.bytes
	a.mu.Unlock()

	if span == nil {
		return
	}
	span.SetAttributes(
		attribute.Int("chunks", chunks),
		attribute.Int64("body_bytes", bytes),
	)
	span.SetStatus(code, description)
	span.End()
}

func (a *Assembler) debugf(format string, args ...any) {
	if a.logger != nil {
		a.logger.Printf(format, args...)
	}
}
