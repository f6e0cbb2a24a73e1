package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type SessionClaims struct {
	jwt.RegisteredClaims
}

// TokenIssuer signs and checks stateless session tokens. Verify fails with
// errors.ErrInvalidToken for every kind of bad token.
type TokenIssuer interface {
	Issue(userID uuid.UUID) (token string, exp time.Time, err error)
	Verify(token string) (uuid.UUID, error)
}
