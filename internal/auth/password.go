package auth

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrHashing is returned when a hash cannot be produced or a stored hash
	// cannot be parsed.
	ErrHashing = errors.New("password hashing failed")

	// ErrPasswordTooLong is returned for plaintexts bcrypt cannot represent.
	ErrPasswordTooLong = bcrypt.ErrPasswordTooLong
)

// MaxPasswordBytes is the longest plaintext bcrypt accepts.
const MaxPasswordBytes = 72

// Hasher hashes and verifies passwords with bcrypt. The salt and cost are
// embedded in every hash, so verification only needs the stored string.
type Hasher struct {
	cost     int
	generate func(password []byte, cost int) ([]byte, error)

	mu    sync.Mutex
	dummy []byte
}

// NewHasher creates a Hasher with the given bcrypt cost, clamped to the
// range bcrypt supports.
func NewHasher(cost int) *Hasher {
	switch {
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost, generate: bcrypt.GenerateFromPassword}
}

// Cost returns the bcrypt cost used for new hashes.
func (h *Hasher) Cost() int {
	return h.cost
}

// HashPassword returns a freshly salted bcrypt hash of plaintext.
func (h *Hasher) HashPassword(plaintext string) (string, error) {
	hash, err := h.generate([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("%w: %v", ErrHashing, err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches storedHash. A mismatch is
// (false, nil); only a malformed storedHash yields an error.
func (h *Hasher) VerifyPassword(plaintext, storedHash string) (bool, error) {
	// bcrypt compares only the first MaxPasswordBytes, so a longer plaintext
	// can never be an exact match for a stored hash.
	if len(plaintext) > MaxPasswordBytes {
		h.Equalize(plaintext)
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrHashing, err)
	}
}

// Equalize spends the same work as a real VerifyPassword call. It is used
// when no account matched so that a lookup miss and a wrong password take
// comparable time.
func (h *Hasher) Equalize(plaintext string) {
	dummy := h.dummyHash()
	if dummy == nil {
		return
	}
	_ = bcrypt.CompareHashAndPassword(dummy, []byte(plaintext))
}

// dummyHash lazily builds the hash Equalize compares against. A failed
// attempt is logged and retried on the next call.
func (h *Hasher) dummyHash() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dummy != nil {
		return h.dummy
	}
	dummy, err := h.generate([]byte("equalize"), h.cost)
	if err != nil {
		log.Error().Err(err).Int("cost", h.cost).Msg("Failed to generate dummy password hash")
		return nil
	}
	h.dummy = dummy
	return h.dummy
}
