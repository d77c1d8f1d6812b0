// Package client bootstraps the two databases the VoxKeeper client talks to.
//
// InitDatabase opens the local SQLite file holding the offline queue and the
// resumable transfer bookkeeping and migrates it before returning.
// OpenRecordStore prepares the Postgres pool that keeps the remote-visible
// recording records without connecting; RecordStore.Ensure connects and
// migrates it on first use, so the client starts while offline.
//
// Failures are reported through ErrLocalDataNotAvailable and ErrUnavailable
// so callers can match them with errors.Is.
package client
