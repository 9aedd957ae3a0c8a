package spdy

// FrameDelegate receives exactly one callback per decoded frame unit: a
// frame header, a settings entry, a body chunk, or a frame-level error.
//
// Callbacks are invoked inline from Decoder.Decode on the decoding
// goroutine. Implementations must not retain the chunk slice passed to
// ReadDataFrame beyond ownership transfer semantics documented there.
type FrameDelegate interface {
	// ReadDataFrame delivers a body chunk for a stream. The chunk is an
	// independently owned copy; the delegate may keep it. last is set on
	// the final chunk of a frame whose FIN flag is set.
	ReadDataFrame(streamID uint32, last bool, data []byte)

	ReadSynStreamFrame(streamID, associatedStreamID uint32, priority uint8, last, unidirectional bool)
	ReadSynReplyFrame(streamID uint32, last bool)
	ReadRstStreamFrame(streamID uint32, statusCode uint32)

	// ReadSettingsFrame announces a SETTINGS frame; one ReadSetting call
	// follows per entry, then ReadSettingsEnd.
	ReadSettingsFrame(clearPersisted bool)
	ReadSetting(id uint32, value uint32, persistValue, persisted bool)
	ReadSettingsEnd()

	ReadPingFrame(id uint32)
	ReadGoAwayFrame(lastGoodStreamID uint32, statusCode uint32)
	ReadHeadersFrame(streamID uint32, last bool)

	// ReadHeadersEnd fires once the compressed header block of a
	// SYN_STREAM, SYN_REPLY or HEADERS frame has been fully consumed.
	ReadHeadersEnd(streamID uint32)

	ReadWindowUpdateFrame(streamID uint32, deltaWindowSize uint32)

	// ReadFrameError reports a protocol framing error. The decoder is
	// terminally broken afterwards and emits nothing further.
	ReadFrameError(reason string)
}
