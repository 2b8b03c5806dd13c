package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anisong/internal/config"
)

func testJWT() config.JWT {
	return config.JWT{
		Secret:   "test-secret",
		Issuer:   "https://auth.anisong.local",
		Audience: "anisong.api",
		TTLMin:   20,
	}
}

func TestHashCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, CheckPassword(hash, "correct horse battery staple"))
	assert.False(t, CheckPassword(hash, "wrong password"))
	assert.False(t, CheckPassword("not a bcrypt hash", "anything"))
}

func TestSignVerifyJWT(t *testing.T) {
	cfg := testJWT()

	token, err := SignJWT("4f9c5ed7-1d7a-4a9e-9d2d-3a1f0a2b4c5d", RoleUser, cfg)
	require.NoError(t, err)

	claims, err := VerifyJWT(token, cfg)
	require.NoError(t, err)
	assert.Equal(t, "4f9c5ed7-1d7a-4a9e-9d2d-3a1f0a2b4c5d", claims.Subject)
	assert.Equal(t, RoleUser, claims.Role)
	assert.Equal(t, "openid profile", claims.Scope)
	assert.Equal(t, cfg.Issuer, claims.Issuer)
}

func TestVerifyJWTRejections(t *testing.T) {
	cfg := testJWT()
	token, err := SignJWT("user-1", RoleAdmin, cfg)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		cfg   config.JWT
	}{
		{"garbage token", "not.a.jwt", cfg},
		{"wrong secret", token, config.JWT{Secret: "other", Issuer: cfg.Issuer, Audience: cfg.Audience, TTLMin: 20}},
		{"wrong audience", token, config.JWT{Secret: cfg.Secret, Issuer: cfg.Issuer, Audience: "other.api", TTLMin: 20}},
		{"wrong issuer", token, config.JWT{Secret: cfg.Secret, Issuer: "https://other", Audience: cfg.Audience, TTLMin: 20}},
		{"tampered payload", token[:len(token)-3] + "abc", cfg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifyJWT(tt.token, tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerifyJWTExpired(t *testing.T) {
	cfg := testJWT()
	cfg.TTLMin = -5 // already expired, past the leeway

	token, err := SignJWT("user-1", RoleUser, cfg)
	require.NoError(t, err)

	_, err = VerifyJWT(token, cfg)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
