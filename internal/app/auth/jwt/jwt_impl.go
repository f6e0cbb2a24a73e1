package jwt

import (
	"errors"
	"fmt"
	"time"

	customErrors "github.com/Morphiu/Squad-Yangu/internal/domain/auth/errors"
	domainjwt "github.com/Morphiu/Squad-Yangu/internal/domain/auth/jwt"
	"github.com/Morphiu/Squad-Yangu/internal/infra/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const MinSecretLength = 32

type JwtUtilImpl struct {
	secret   []byte
	ttl      time.Duration
	issuer   string
	audience string
	now      func() time.Time
}

type Option func(*JwtUtilImpl)

// WithClock replaces time.Now for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(j *JwtUtilImpl) { j.now = now }
}

func NewJWTUtil(cfg *config.Config, opts ...Option) (*JwtUtilImpl, error) {
	if len(cfg.JWTSecret) < MinSecretLength {
		return nil, customErrors.WrapInternal(
			fmt.Errorf("secret must be at least %d bytes", MinSecretLength), "NewJWTUtil")
	}
	if cfg.TokenTTL <= 0 {
		return nil, customErrors.WrapInternal(errors.New("token ttl must be positive"), "NewJWTUtil")
	}

	j := &JwtUtilImpl{
		secret:   []byte(cfg.JWTSecret),
		ttl:      cfg.TokenTTL,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		now:      time.Now,
	}
	for _, o := range opts {
		o(j)
	}
	return j, nil
}

func (j *JwtUtilImpl) Issue(userID uuid.UUID) (string, time.Time, error) {
	now := j.now()

	claims := domainjwt.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			ID:        uuid.NewString(),
		},
	}
	if j.audience != "" {
		claims.Audience = jwt.ClaimStrings{j.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, customErrors.WrapInternal(err, "sign session token")
	}

	return signed, claims.ExpiresAt.Time, nil
}

func (j *JwtUtilImpl) Verify(raw string) (uuid.UUID, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	if j.audience != "" {
		opts = append(opts, jwt.WithAudience(j.audience))
	}

	token, err := jwt.ParseWithClaims(raw, &domainjwt.SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, customErrors.ErrInvalidToken
		}
		return j.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return uuid.Nil, customErrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*domainjwt.SessionClaims)
	if !ok {
		return uuid.Nil, customErrors.ErrInvalidToken
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil || uid == uuid.Nil {
		return uuid.Nil, customErrors.ErrInvalidToken
	}
	return uid, nil
}
