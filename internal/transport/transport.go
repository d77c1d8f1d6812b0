// Package transport moves capture bytes into owner-scoped object storage.
//
// S3Transport uploads small objects with one PutObject and larger ones as a
// multipart upload whose acknowledged parts are persisted, so an interrupted
// upload resumes from the last confirmed part. PresignedTransport PUTs the
// whole object to a presigned URL. Both refuse keys outside the credential
// owner's prefix.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/voxkeeper/internal/common"
)

// Object is one payload bound for storage.
type Object struct {
	Key         string
	Data        []byte
	ContentType string
}

// ProgressFunc receives bytes acknowledged so far out of total.
type ProgressFunc func(sent, total int64)

// Transport uploads objects and answers whether bytes exist at a key.
type Transport interface {
	// Upload returns nil once the object is fully stored. Cancellation
	// yields common.ErrCancelled, other failures wrap common.ErrTransfer.
	// Nothing is promised about partial bytes after a failure.
	Upload(ctx context.Context, obj Object, credential string, progress ProgressFunc) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Session is the live state of one Upload call: bytes sent, total, and a
// handle to cancel it.
type Session struct {
	sent   atomic.Int64
	total  int64
	cancel context.CancelFunc

	mu       sync.Mutex
	observer ProgressFunc
}

// NewSession derives a cancellable context for an upload of total bytes.
func NewSession(ctx context.Context, total int64) (*Session, context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	return &Session{total: total, cancel: cancel}, ctx
}

func (s *Session) Sent() int64  { return s.sent.Load() }
func (s *Session) Total() int64 { return s.total }

// Cancel aborts the upload bound to this session.
func (s *Session) Cancel() { s.cancel() }

// Observe registers fn to be called on every progress change.
func (s *Session) Observe(fn ProgressFunc) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// Track is the ProgressFunc to hand to Transport.Upload. It keeps the sent
// counter monotonic.
func (s *Session) Track(sent, total int64) {
	for {
		cur := s.sent.Load()
		if sent <= cur {
			return
		}
		if s.sent.CompareAndSwap(cur, sent) {
			break
		}
	}
	s.mu.Lock()
	fn := s.observer
	s.mu.Unlock()
	if fn != nil {
		fn(sent, total)
	}
}

// Done releases the session's context.
func (s *Session) Done() { s.cancel() }

func classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, common.ErrCancelled)
	}
	if errors.Is(err, common.ErrUnauthorized) || errors.Is(err, common.ErrInvalidToken) || errors.Is(err, common.ErrTokenExpired) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, common.ErrTransfer, err)
}
