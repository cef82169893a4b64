package review

// Encryptor seals archived snapshots at rest.
// Sealing uses the public key only. Opening requires a passphrase to unlock
// the private key, producing an Opener for the session.
type Encryptor interface {
	// Setup performs one-time key generation and stores the private key
	// encrypted with passphrase.
	Setup(passphrase string) error

	// Seal returns the ciphertext of plaintext.
	Seal(plaintext []byte) ([]byte, error)

	// Unlock decrypts the private key and returns an Opener.
	// Returns an error if the passphrase is incorrect.
	Unlock(passphrase string) (Opener, error)

	// IsConfigured returns true if the key material is in place.
	IsConfigured() bool
}

// Opener holds an unlocked private key in memory only.
type Opener interface {
	Open(ciphertext []byte) ([]byte, error)
}
