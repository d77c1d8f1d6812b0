// Package services holds the client's pipelines: the live upload path, the
// offline sync reconciler, the orphan sweep and the sync status broadcaster.
package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/audio/transcode"
	"github.com/dmitrijs2005/voxkeeper/internal/auth"
)

// Transcoder is the part of transcode.Transcoder the upload path needs.
type Transcoder interface {
	Transcode(ctx context.Context, req transcode.Request, progress transcode.ProgressFunc) (transcode.Result, error)
}

// Online reports the current connectivity state.
type Online interface {
	IsOnline() bool
}

// Signal is a connectivity source with transition notifications.
type Signal interface {
	Online
	Subscribe() (int, <-chan bool)
	Unsubscribe(id int)
}

// TokenSource produces the bearer credential used for an owner's uploads.
type TokenSource func(ownerID string) (string, error)

// JWTTokens issues short-lived owner tokens signed with secret.
func JWTTokens(secret []byte, ttl time.Duration) TokenSource {
	return func(ownerID string) (string, error) {
		return auth.IssueToken(ownerID, secret, ttl)
	}
}

func durationPtr(seconds float64) *float64 {
	if seconds <= 0 {
		return nil
	}
	return &seconds
}
