// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/koma/internal/platform/sec"
)

func signToken(t *testing.T, key *rsa.PrivateKey, claims sec.AuthClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func claimsFor(issuer string, expiresIn time.Duration) sec.AuthClaims {
	now := time.Now()
	return sec.AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
		Username: "tai",
		Role:     string(sec.RoleAdmin),
	}
}

/*
TestTokenService_VerifyToken covers valid, expired, foreign-issuer and foreign-key tokens.
*/
func TestTokenService_VerifyToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	service := sec.NewTokenServiceFromKey(&key.PublicKey, "koma.app")

	t.Run("valid", func(t *testing.T) {
		claims, err := service.VerifyToken(signToken(t, key, claimsFor("koma.app", time.Hour)))
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, "admin", claims.Role)
	})

	t.Run("expired", func(t *testing.T) {
		_, err := service.VerifyToken(signToken(t, key, claimsFor("koma.app", -time.Hour)))
		assert.Error(t, err)
	})

	t.Run("wrong_issuer", func(t *testing.T) {
		_, err := service.VerifyToken(signToken(t, key, claimsFor("elsewhere", time.Hour)))
		assert.Error(t, err)
	})

	t.Run("wrong_key", func(t *testing.T) {
		_, err := service.VerifyToken(signToken(t, otherKey, claimsFor("koma.app", time.Hour)))
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := service.VerifyToken("not.a.token")
		assert.Error(t, err)
	})
}

/*
TestUserRole_AtLeast checks the role hierarchy used by moderation routes.
*/
func TestUserRole_AtLeast(t *testing.T) {
	assert.True(t, sec.RoleAdmin.AtLeast(sec.RoleModerator))
	assert.True(t, sec.RoleModerator.AtLeast(sec.RoleModerator))
	assert.False(t, sec.RoleUploader.AtLeast(sec.RoleModerator))
	assert.False(t, sec.UserRole("unknown").AtLeast(sec.RoleMember))
}
