// Package models defines the data the VoxKeeper client persists and passes
// between its pipeline stages.
package models

import "time"

// PendingStatus is the state of a capture waiting in the offline queue.
// There is no done state: a synced capture is removed from the queue.
type PendingStatus string

const (
	PendingStatusPending   PendingStatus = "pending"
	PendingStatusUploading PendingStatus = "uploading"
	PendingStatusError     PendingStatus = "error"
)

// PendingCapture is one capture held in the local durable queue until it can
// be uploaded.
type PendingCapture struct {
	// Id is generated on the client and reused as the recording id on sync.
	Id      string
	OwnerID string

	FileName string
	FileSize int64
	MimeType string
	Data     []byte

	// Checksum is the BLAKE2b digest of Data, unique per owner.
	Checksum string

	Status       PendingStatus
	ErrorMessage string
	RetryCount   int

	// DurationSeconds is zero when the capture was never measured.
	DurationSeconds float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecordStatus is the remote-visible state of a recording.
type RecordStatus string

const (
	RecordStatusUploading RecordStatus = "uploading"
	RecordStatusDone      RecordStatus = "done"
	RecordStatusError     RecordStatus = "error"
)

// RecordingRecord is the authoritative status row for an uploaded capture.
type RecordingRecord struct {
	Id          string
	OwnerID     string
	StoragePath string
	FileName    string
	FileSize    int64

	// Duration in seconds, nil until known.
	Duration *float64

	Status       RecordStatus
	ErrorMessage string
	IsArchived   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TransferPart is an acknowledged part of a resumable multipart upload.
type TransferPart struct {
	Number int32
	ETag   string
	Size   int64
}

// TransferState is the bookkeeping for one resumable upload.
type TransferState struct {
	Key      string
	UploadID string
	Total    int64
	PartSize int64
	Parts    []TransferPart
}
