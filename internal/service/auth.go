package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bekovrafik/DreamColor/internal/errs"
	"github.com/bekovrafik/DreamColor/internal/model"
)

const tokenIssuer = "dreamcolord"

// AuthService issues and verifies device tokens for API callers.
type AuthService interface {
	// IssueDeviceToken returns a signed token naming the device.
	IssueDeviceToken(device string) (model.Tokens, error)
	// Verify checks a token and returns its device name.
	Verify(token string) (string, error)
}

type AuthServiceImpl struct {
	signKey   []byte
	accessTTL time.Duration
	now       func() time.Time
}

var _ AuthService = (*AuthServiceImpl)(nil)

// NewAuthService constructs AuthService. accessTTL <= 0 issues tokens without expiry.
func NewAuthService(signKey []byte, accessTTL time.Duration) *AuthServiceImpl {
	return &AuthServiceImpl{signKey: signKey, accessTTL: accessTTL, now: time.Now}
}

// IssueDeviceToken creates a signed HS256 JWT for the device.
func (s *AuthServiceImpl) IssueDeviceToken(device string) (model.Tokens, error) {
	device = strings.TrimSpace(device)
	if device == "" {
		return model.Tokens{}, fmt.Errorf("%w: empty device name", errs.ErrValidation)
	}
	jti, err := uuid.NewV4()
	if err != nil {
		return model.Tokens{}, err
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:   tokenIssuer,
		Subject:  device,
		ID:       jti.String(),
		IssuedAt: jwt.NewNumericDate(now),
	}
	var exp time.Time
	if s.accessTTL > 0 {
		exp = now.Add(s.accessTTL)
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: signed, ExpiresAt: exp}, nil
}

// Verify parses token and returns the subject. Any failure is errs.ErrUnauthorized.
func (s *AuthServiceImpl) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.signKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !tok.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: token expired", errs.ErrUnauthorized)
		}
		return "", errs.ErrUnauthorized
	}
	if claims.Subject == "" {
		return "", errs.ErrUnauthorized
	}
	return claims.Subject, nil
}
