// Package hasher stores passwords as salted argon2id digests. Digests written
// by the previous bcrypt-based deployment still verify and are reported by
// NeedsRehash so callers can upgrade them after a successful login.
package hasher

import (
	"errors"
	"strings"

	customErrors "github.com/Miraines/MoonyAndStarry/session-service/internal/domain/auth/errors"
	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

var DefaultParams = &argon2id.Params{
	Memory:      64 * 1024, // 64 MiB
	Iterations:  2,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

var ErrEmptyPassword = customErrors.NewInvalidArgument("password cannot be empty")

type PasswordHasher interface {
	Hash(password string) (string, error)

	// Verify returns (false, nil) on mismatch and an error only for a digest
	// it cannot parse.
	Verify(password, hash string) (bool, error)

	NeedsRehash(hash string) bool
}

type Argon2idHasher struct {
	pepper string
	params *argon2id.Params
}

func NewArgon2idHasher(pepper string) *Argon2idHasher {
	return NewArgon2idHasherWithParams(pepper, DefaultParams)
}

func NewArgon2idHasherWithParams(pepper string, params *argon2id.Params) *Argon2idHasher {
	return &Argon2idHasher{pepper: pepper, params: params}
}

func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := argon2id.CreateHash(password+h.pepper, h.params)
	if err != nil {
		return "", customErrors.WrapInternal(err, "hash password")
	}
	return hash, nil
}

func (h *Argon2idHasher) Verify(password, hash string) (bool, error) {
	if isBcrypt(hash) {
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, customErrors.WrapInternal(err, "verify bcrypt hash")
		}
	}

	// ComparePasswordAndHash compares digests in constant time.
	ok, err := argon2id.ComparePasswordAndHash(password+h.pepper, hash)
	if err != nil {
		return false, customErrors.WrapInternal(err, "verify argon2id hash")
	}
	return ok, nil
}

// NeedsRehash is true for digests that are not argon2id.
func (h *Argon2idHasher) NeedsRehash(hash string) bool {
	return !strings.HasPrefix(hash, "$argon2id$")
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}
