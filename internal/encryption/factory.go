package encryption

import (
	"fmt"

	"draftmark/internal/config"
	"draftmark/internal/review"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// It returns nil for "none", meaning archives are stored in plaintext.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (review.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("public_key_path and private_key_path required for age encryption")
		}
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
