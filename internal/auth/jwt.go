// Package auth issues and verifies the owner tokens that authorize writes to
// a user's recordings prefix.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the owning user's id next to the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	OwnerID string `json:"owner_id"`
}

func IssueToken(ownerID string, secretKey []byte, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		OwnerID: ownerID,
	})

	s, err := token.SignedString(secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

func OwnerFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.OwnerID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.OwnerID, nil
}

// OwnerPrefix is the storage prefix every object of ownerID lives under.
func OwnerPrefix(ownerID string) string {
	return "recordings/" + ownerID + "/"
}

// ObjectKey builds the storage key for one recording.
func ObjectKey(ownerID, recordID, fileName string) string {
	return OwnerPrefix(ownerID) + recordID + "/" + fileName
}

// Authorize checks that token belongs to an owner allowed to write key.
func Authorize(token string, secretKey []byte, key string) (string, error) {
	owner, err := OwnerFromToken(token, secretKey)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(key, OwnerPrefix(owner)) {
		return "", fmt.Errorf("%w: key %q outside owner prefix", common.ErrUnauthorized, key)
	}
	return owner, nil
}
