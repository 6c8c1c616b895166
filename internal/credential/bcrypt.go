package credential

import (
	"fmt"

	"filmcat/internal/catalog"

	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher stores salted bcrypt digests. It also accepts legacy SHA-256
// digests and flags them for rehashing.
type BcryptHasher struct {
	cost int
}

var _ catalog.PasswordHasher = (*BcryptHasher)(nil)

// NewBcryptHasher creates a hasher with the given cost. A zero cost selects
// bcrypt.DefaultCost.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("generating bcrypt digest: %w", err)
	}
	return string(digest), nil
}

func (h *BcryptHasher) Verify(password, digest string) bool {
	if isSHA256Digest(digest) {
		return VerifyPassword(password, digest)
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// NeedsRehash is true for legacy SHA-256 digests and for bcrypt digests
// produced with a different cost.
func (h *BcryptHasher) NeedsRehash(digest string) bool {
	if isSHA256Digest(digest) {
		return true
	}
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		return false
	}
	return cost != h.cost
}
