// Package auth checks staff credentials and issues session tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"tablebook/internal/config"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
)

const issuer = "tablebook"

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// UserLookup resolves a configured staff account.
type UserLookup interface {
	FindUser(username string) *config.StaffUser
}

type Service struct {
	users     UserLookup
	secretKey []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

func NewService(users UserLookup, secretKey string, tokenTTL time.Duration) *Service {
	return &Service{
		users:     users,
		secretKey: []byte(secretKey),
		tokenTTL:  tokenTTL,
		now:       time.Now,
	}
}

// Login verifies the password and returns a signed token with its expiry.
// Unknown users and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(username, password string) (string, time.Time, error) {
	user := s.users.FindUser(username)
	if user == nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return s.GenerateToken(user.Username, roleOf(user))
}

func roleOf(u *config.StaffUser) string {
	if u.Role == "" {
		return "host"
	}
	return u.Role
}

func (s *Service) GenerateToken(username, role string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.tokenTTL)
	claims := Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expires, nil
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Username == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword produces a bcrypt hash suitable for auth.users[].password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
