package credential

import (
	"fmt"

	"filmcat/internal/catalog"
	"filmcat/internal/config"
)

// NewHasherFromConfig creates a PasswordHasher based on the credentials config.
func NewHasherFromConfig(cfg config.CredentialsConfig) (catalog.PasswordHasher, error) {
	switch cfg.Hasher {
	case "", "bcrypt":
		h, err := NewBcryptHasher(cfg.BcryptCost)
		if err != nil {
			return nil, err
		}
		return h, nil
	case "sha256":
		return SHA256Hasher{}, nil
	default:
		return nil, fmt.Errorf("unknown password hasher: %s", cfg.Hasher)
	}
}
