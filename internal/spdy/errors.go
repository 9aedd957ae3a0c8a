package spdy

// ProtocolError is the error form of a frame-level failure reported
// through FrameDelegate.ReadFrameError. Collaborators that abort
// in-flight exchanges on a framing error propagate it as this type.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "spdy: " + e.Reason
}
