package models

// Capture is raw audio handed over by the capture surface. It lives only until
// it is uploaded or queued.
type Capture struct {
	Data     []byte
	MimeType string
	FileName string

	// DurationSeconds is the measured duration, zero if unknown.
	DurationSeconds float64
}

func (c Capture) Size() int64 {
	return int64(len(c.Data))
}
