// Package rsp assembles decoded SPDY frames into consumable responses:
// it bridges the frame decoder's delegate callbacks to reactive body
// futures, one per stream.
package rsp

import (
	"log"
	"math"
	"math/bits"
	"sync"

	"github.com/lizhengdao/whiskey/pkg/futures"
)

// maxBodySize bounds the accumulator's backing buffer. Growing past it
// indicates a body size the configuration never anticipated; it is a
// precondition violation, not a recoverable error.
const maxBodySize = math.MaxInt >> 1

// BodyFuture streams a response body chunk by chunk and resolves to the
// complete body. Chunks arrive from the frame decoder via Provide; a
// consumer either pulls them (Iterator), observes them (AddObserver), or
// ignores streaming entirely and awaits Result, which then yields the
// whole accumulated body.
type BodyFuture struct {
	*futures.Reactive[[]byte, []byte]
	acc *byteAccumulator
}

// NewBodyFuture creates a pending body future. logger may be nil.
func NewBodyFuture(logger *log.Logger) *BodyFuture {
	acc := &byteAccumulator{logger: logger}
	return &BodyFuture{
		Reactive: futures.NewReactive[[]byte, []byte](acc),
		acc:      acc,
	}
}

// SetExpectedLength hints the final body size (typically from a
// Content-Length header) so the first allocation is right-sized.
func (b *BodyFuture) SetExpectedLength(n int) {
	b.acc.setExpectedLength(n)
}

// byteAccumulator owns a single contiguous buffer that grows by doubling
// and records a write boundary per accumulated chunk, so the buffer can
// be re-sliced into the original chunks without copying.
type byteAccumulator struct {
	mu         sync.Mutex
	buf        []byte // len == bytes written; one backing allocation
	boundaries []int
	expected   int
	logger     *log.Logger
}

func (a *byteAccumulator) setExpectedLength(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n > 0 {
		a.expected = n
	}
}

// Accumulate appends chunk to the backing buffer, allocating lazily and
// growing to the next power of two when out of room. Zero-length input
// is ignored.
func (a *byteAccumulator) Accumulate(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.buf == nil {
		capacity := a.expected
		if len(chunk) > capacity {
			capacity = len(chunk)
		}
		a.buf = make([]byte, 0, capacity)
		a.debugf("rsp: allocated body buffer, cap=%d", capacity)
	}

	required := len(a.buf) + len(chunk)
	if required > maxBodySize {
		panic("rsp: body buffer exceeds maximum representable size")
	}
	if required > cap(a.buf) {
		grown := make([]byte, len(a.buf), nextPowerOfTwo(required))
		copy(grown, a.buf)
		a.buf = grown
		a.debugf("rsp: grew body buffer, cap=%d", cap(a.buf))
	}

	a.buf = append(a.buf, chunk...)
	a.boundaries = append(a.boundaries, len(a.buf))
}

// Drain re-slices the buffer at each recorded boundary into views over
// the same backing storage and gives up ownership; the accumulator never
// writes to the buffer again, so the views stay stable for as long as
// consumers hold them.
func (a *byteAccumulator) Drain() [][]byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	chunks := make([][]byte, 0, len(a.boundaries))
	prev := 0
	for _, boundary := range a.boundaries {
		chunks = append(chunks, a.buf[prev:boundary:boundary])
		prev = boundary
	}
	a.buf = nil
	a.boundaries = nil
	return chunks
}

// Complete returns the whole accumulated body, or nil if no bytes were
// ever accumulated.
func (a *byteAccumulator) Complete() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	body := a.buf
	a.buf = nil
	a.boundaries = nil
	return body
}

func (a *byteAccumulator) debugf(format string, args ...any) {
	if a.logger != nil {
		a.logger.Printf(format, args...)
	}
}

// nextPowerOfTwo returns the smallest power of two strictly greater
// than n.
func nextPowerOfTwo(n int) int {
	return 1 << bits.Len(uint(n))
}
