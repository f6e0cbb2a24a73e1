package reset

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	customErrors "github.com/Morphiu/Squad-Yangu/internal/domain/auth/errors"
	"github.com/Morphiu/Squad-Yangu/internal/domain/auth/model"
	"github.com/Morphiu/Squad-Yangu/internal/domain/auth/repo"
)

const tokenBytes = 32

// Token is a freshly generated reset secret. Plain goes to the user by
// email and is never stored; Hash is what the store keeps.
type Token struct {
	Plain     string
	Hash      string
	ExpiresAt time.Time
}

type Manager struct {
	users repo.UserRepo
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(users repo.UserRepo, ttl time.Duration, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{users: users, ttl: ttl, now: now}
}

func (m *Manager) Generate() (Token, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return Token{}, customErrors.WrapInternal(err, "generate reset token")
	}
	plain := hex.EncodeToString(buf)

	return Token{
		Plain:     plain,
		Hash:      Hash(plain),
		ExpiresAt: m.now().Add(m.ttl).UTC(),
	}, nil
}

func Hash(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// Validate returns the user holding an unexpired reset token matching plain.
// Every miss is ErrInvalidResetToken.
func (m *Manager) Validate(ctx context.Context, plain string) (model.User, error) {
	if len(plain) != tokenBytes*2 {
		return model.User{}, customErrors.ErrInvalidResetToken
	}
	hash := Hash(plain)
	now := m.now().UTC()

	u, err := m.users.GetUserByResetTokenHash(ctx, hash, now)
	switch {
	case customErrors.IsNotFound(err):
		return model.User{}, customErrors.ErrInvalidResetToken
	case err != nil:
		return model.User{}, customErrors.WrapInternal(err, "GetUserByResetTokenHash")
	}

	if u.ResetTokenHash == nil ||
		subtle.ConstantTimeCompare([]byte(*u.ResetTokenHash), []byte(hash)) != 1 ||
		!u.HasPendingReset(now) {
		return model.User{}, customErrors.ErrInvalidResetToken
	}
	return u, nil
}
