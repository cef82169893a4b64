package archive

import (
	"context"
	"fmt"

	"draftmark/internal/config"
	"draftmark/internal/review"
)

// NewArchiveFromConfig creates an archive backend based on the archive config type.
// enc may be nil, in which case snapshots are stored as plaintext JSON.
func NewArchiveFromConfig(ctx context.Context, cfg config.ArchiveConfig, enc review.Encryptor, passphrase PassphraseFunc) (review.ArchiveBackend, error) {
	codec := NewCodec(enc, passphrase)

	switch cfg.Type {
	case "memory":
		return NewMemoryArchive(), nil
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem archive requires root to be set")
		}
		a, err := NewFileSystemArchive(cfg.Root, codec)
		if err != nil {
			return nil, err
		}
		return a, nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 archive requires s3_bucket to be set")
		}
		a, err := NewS3Archive(ctx, cfg, codec)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}
