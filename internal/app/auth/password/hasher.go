package password

import (
	"context"
	"errors"
	"runtime"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

var DefaultParams = &argon2id.Params{
	Memory:      64 * 1024, // 64 MiB
	Iterations:  2,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

// Hasher produces argon2id PHC strings. Hashes written by the previous
// service with bcrypt still verify and are reported by NeedsRehash.
type Hasher struct {
	params *argon2id.Params
	pepper string
	sem    *semaphore.Weighted
}

// NewHasher returns a Hasher that runs at most maxConcurrent hash
// computations at a time. maxConcurrent <= 0 means GOMAXPROCS.
func NewHasher(pepper string, params *argon2id.Params, maxConcurrent int) *Hasher {
	if params == nil {
		params = DefaultParams
	}
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.GOMAXPROCS(0)
	}
	return &Hasher{
		params: params,
		pepper: pepper,
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

func (h *Hasher) Hash(ctx context.Context, plain string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	return argon2id.CreateHash(plain+h.pepper, h.params)
}

// Verify reports whether plain matches hash. A mismatch is (false, nil);
// errors are reserved for malformed hashes and cancelled contexts.
func (h *Hasher) Verify(ctx context.Context, plain, hash string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	if isBcrypt(hash) {
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, err
		}
	}

	return argon2id.ComparePasswordAndHash(plain+h.pepper, hash)
}

// NeedsRehash reports hashes that are not argon2id with the current params.
func (h *Hasher) NeedsRehash(hash string) bool {
	if isBcrypt(hash) {
		return true
	}
	p, _, _, err := argon2id.DecodeHash(hash)
	if err != nil {
		return true
	}
	return p.Memory != h.params.Memory ||
		p.Iterations != h.params.Iterations ||
		p.Parallelism != h.params.Parallelism ||
		p.KeyLength != h.params.KeyLength
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}
