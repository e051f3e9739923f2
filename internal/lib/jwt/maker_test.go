package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test_secret_key_1234567890_abcdefgh"

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestJWTMaker_GenerateAndParseToken_ValidCases(t *testing.T) {
	tokenTTL := 15 * time.Minute
	maker := NewJWTMaker(testSecret, tokenTTL)

	tests := []struct {
		name     string
		username string
		roles    []string
	}{
		{name: "admin user", username: "admin_user", roles: []string{"ADMIN"}},
		{name: "regular user", username: "regular_user", roles: []string{"USER"}},
		{name: "several roles", username: "user@domain.com", roles: []string{"ADMIN", "USER"}},
		{name: "no roles", username: "user123", roles: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := maker.GenerateToken(tt.username, tt.roles)
			require.NoError(t, err)
			assert.Len(t, strings.Split(token, "."), 3)

			claims, err := maker.ParseToken(token)
			require.NoError(t, err)

			assert.Equal(t, tt.username, claims.Username())
			assert.Equal(t, tt.roles, claims.Roles)
			assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, time.Second)
			assert.Equal(t, tokenTTL, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
		})
	}
}

func TestJWTMaker_GenerateToken_EmptyUsername(t *testing.T) {
	maker := NewJWTMaker(testSecret, time.Minute)

	_, err := maker.GenerateToken("", nil)
	assert.Error(t, err)
}

func TestJWTMaker_DefaultTTL(t *testing.T) {
	maker := NewJWTMaker(testSecret, 0)
	assert.Equal(t, DefaultTokenTTL, maker.TTL())
}

func TestJWTMaker_ParseToken_InvalidTokens(t *testing.T) {
	maker := NewJWTMaker(testSecret, 15*time.Minute)

	validToken, err := maker.GenerateToken("testuser", []string{"USER"})
	require.NoError(t, err)

	expired, err := NewJWTMaker(testSecret, -time.Hour).GenerateToken("testuser", nil)
	require.NoError(t, err)

	foreign, err := NewJWTMaker("wrong_secret_key_wrong_secret_key", time.Hour).GenerateToken("testuser", nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "empty token", token: "", wantErr: ErrTokenMalformed},
		{name: "garbage", token: "invalid.token.here", wantErr: ErrTokenMalformed},
		{name: "two segments", token: "abc.def", wantErr: ErrTokenMalformed},
		{name: "expired token", token: expired, wantErr: ErrTokenExpired},
		{name: "wrong secret key", token: foreign, wantErr: ErrTokenInvalidSignature},
		{name: "appended garbage", token: validToken + "tampered", wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := maker.ParseToken(tt.token)
			require.Error(t, err)
			assert.Nil(t, claims)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestJWTMaker_ParseToken_RejectsOtherAlgorithms(t *testing.T) {
	maker := NewJWTMaker(testSecret, time.Hour)

	// {"alg":"none","typ":"JWT"} . {"sub":"admin","exp":9999999999} .
	unsigned := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiJhZG1pbiIsImV4cCI6OTk5OTk5OTk5OX0."

	_, err := maker.ParseToken(unsigned)
	assert.ErrorIs(t, err, ErrTokenInvalidSignature)
}

func TestJWTMaker_TamperDetection(t *testing.T) {
	maker := NewJWTMaker(testSecret, time.Hour)

	token, err := maker.GenerateToken("alice", []string{"ADMIN", "USER"})
	require.NoError(t, err)

	for i := range len(token) {
		replacement := byte('A')
		if token[i] == 'A' {
			replacement = 'B'
		}
		tampered := token[:i] + string(replacement) + token[i+1:]

		_, err := maker.ParseToken(tampered)
		assert.Error(t, err, "byte %d changed but token still verified", i)
	}
}

func TestJWTMaker_DifferentSecretKeys(t *testing.T) {
	maker1 := NewJWTMaker("first_secret_key_first_secret_key", 15*time.Minute)
	maker2 := NewJWTMaker("different_secret_key_different_key", 15*time.Minute)

	token, err := maker1.GenerateToken("testuser", []string{"ADMIN"})
	require.NoError(t, err)

	claims, err := maker2.ParseToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalidSignature)
	assert.Nil(t, claims)

	claims, err = maker1.ParseToken(token)
	assert.NoError(t, err)
	assert.NotNil(t, claims)
}

func TestJWTMaker_ExpiryBoundary(t *testing.T) {
	ttl := 24 * time.Hour
	issuedAt := time.Unix(1_700_000_000, 0)
	now := issuedAt

	maker := NewJWTMaker(testSecret, ttl, WithClock(fixedClock(&now)))

	token, err := maker.GenerateToken("testuser", []string{"USER"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		at      time.Time
		wantErr bool
	}{
		{name: "right after issue", at: issuedAt, wantErr: false},
		{name: "one second before expiry", at: issuedAt.Add(ttl - time.Second), wantErr: false},
		{name: "exactly at expiry", at: issuedAt.Add(ttl), wantErr: true},
		{name: "one second after expiry", at: issuedAt.Add(ttl + time.Second), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now = tt.at
			claims, err := maker.ParseToken(token)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrTokenExpired)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "testuser", claims.Username())
		})
	}
}
