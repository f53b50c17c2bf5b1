package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tablebook/internal/config"
)

func newService(t *testing.T) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("opensesame"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Auth.Users = []config.StaffUser{
		{Username: "host", PasswordHash: string(hash)},
		{Username: "boss", PasswordHash: string(hash), Role: "manager"},
	}
	return NewService(cfg, "test-secret", time.Hour)
}

func TestLogin(t *testing.T) {
	s := newService(t)

	token, expires, err := s.Login("boss", "opensesame")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "boss", claims.Username)
	assert.Equal(t, "manager", claims.Role)

	token, _, err = s.Login("host", "opensesame")
	require.NoError(t, err)
	claims, err = s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "host", claims.Role, "default role")
}

func TestLogin_Rejects(t *testing.T) {
	s := newService(t)
	_, _, err := s.Login("host", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = s.Login("ghost", "opensesame")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateToken(t *testing.T) {
	s := newService(t)
	token, _, err := s.GenerateToken("host", "host")
	require.NoError(t, err)

	other := NewService(s.users, "another-secret", time.Hour)
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = s.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = s.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Username: "host"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = NewService(s.users, "test-secret", time.Hour).ValidateToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("pw")))

	_, err = HashPassword("")
	assert.Error(t, err)
}
