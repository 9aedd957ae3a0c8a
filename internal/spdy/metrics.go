package spdy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whiskey_spdy_frames_decoded_total",
			Help: "Total number of SPDY frames decoded, by frame type",
		},
		[]string{"type"},
	)

	frameErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whiskey_spdy_frame_errors_total",
			Help: "Total number of SPDY framing errors",
		},
	)

	dataBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whiskey_spdy_data_bytes_total",
			Help: "Total body bytes delivered from DATA frames",
		},
	)

	dataChunkSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "whiskey_spdy_data_chunk_bytes",
			Help:    "Size distribution of emitted body chunks",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		},
	)
)

// InstrumentedDelegate wraps a FrameDelegate and records Prometheus
// metrics for every decoded frame before forwarding the callback.
type InstrumentedDelegate struct {
	next FrameDelegate
}

// InstrumentDelegate wraps next with metrics collection.
func InstrumentDelegate(next FrameDelegate) *InstrumentedDelegate {
	return &InstrumentedDelegate{next: next}
}

func (d *InstrumentedDelegate) ReadDataFrame(streamID uint32, last bool, data []byte) {
	framesDecoded.WithLabelValues("data").Inc()
	dataBytes.Add(float64(len(data)))
	dataChunkSize.Observe(float64(len(data)))
	d.next.ReadDataFrame(streamID, last, data)
}

func (d *InstrumentedDelegate) ReadSynStreamFrame(streamID, associatedStreamID uint32, priority uint8, last, unidirectional bool) {
	framesDecoded.WithLabelValues("syn_stream").Inc()
	d.next.ReadSynStreamFrame(streamID, associatedStreamID, priority, last, unidirectional)
}

func (d *InstrumentedDelegate) ReadSynReplyFrame(streamID uint32, last bool) {
	framesDecoded.WithLabelValues("syn_reply").Inc()
	d.next.ReadSynReplyFrame(streamID, last)
}

func (d *InstrumentedDelegate) ReadRstStreamFrame(streamID uint32, statusCode uint32) {
	framesDecoded.WithLabelValues("rst_stream").Inc()
	d.next.ReadRstStreamFrame(streamID, statusCode)
}

func (d *InstrumentedDelegate) ReadSettingsFrame(clearPersisted bool) {
	framesDecoded.WithLabelValues("settings").Inc()
	d.next.ReadSettingsFrame(clearPersisted)
}

func (d *InstrumentedDelegate) ReadSetting(id uint32, value uint32, persistValue, persisted bool) {
	d.next.ReadSetting(id, value, persistValue, persisted)
}

func (d *InstrumentedDelegate) ReadSettingsEnd() {
	d.next.ReadSettingsEnd()
}

func (d *InstrumentedDelegate) ReadPingFrame(id uint32) {
	framesDecoded.WithLabelValues("ping").Inc()
	d.next.ReadPingFrame(id)
}

func (d *InstrumentedDelegate) ReadGoAwayFrame(lastGoodStreamID uint32, statusCode uint32) {
	framesDecoded.WithLabelValues("goaway").Inc()
	d.next.ReadGoAwayFrame(lastGoodStreamID, statusCode)
}

func (d *InstrumentedDelegate) ReadHeadersFrame(streamID uint32, last bool) {
	framesDecoded.WithLabelValues("headers").Inc()
	d.next.ReadHeadersFrame(streamID, last)
}

func (d *InstrumentedDelegate) ReadHeadersEnd(streamID uint32) {
	d.next.ReadHeadersEnd(streamID)
}

func (d *InstrumentedDelegate) ReadWindowUpdateFrame(streamID uint32, deltaWindowSize uint32) {
	framesDecoded.WithLabelValues("window_update").Inc()
	d.next.ReadWindowUpdateFrame(streamID, deltaWindowSize)
}

func (d *InstrumentedDelegate) ReadFrameError(reason string) {
	frameErrors.Inc()
	d.next.ReadFrameError(reason)
}
