package auth

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	tok, err := IssueToken("owner-123", secret, time.Hour)
	require.NoError(t, err)

	got, err := OwnerFromToken(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "owner-123", got)
}

func TestOwnerFromToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := IssueToken("u1", secret, -time.Second)
	require.NoError(t, err)

	_, err = OwnerFromToken(tok, secret)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestOwnerFromToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := IssueToken("u2", []byte("right"), time.Hour)
	require.NoError(t, err)

	_, err = OwnerFromToken(tok, []byte("wrong"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestOwnerFromToken_Garbage(t *testing.T) {
	t.Parallel()

	_, err := OwnerFromToken("not.a.jwt", []byte("s"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	tok, err := IssueToken("alice", secret, time.Hour)
	require.NoError(t, err)

	owner, err := Authorize(tok, secret, ObjectKey("alice", "r1", "memo.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)

	_, err = Authorize(tok, secret, ObjectKey("bob", "r1", "memo.mp3"))
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	// a sibling owner whose id shares a prefix must not pass
	_, err = Authorize(tok, secret, "recordings/alice2/r1/memo.mp3")
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestObjectKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "recordings/o/r/f.wav", ObjectKey("o", "r", "f.wav"))
}
