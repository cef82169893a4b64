package encryption

import (
	"bytes"
	"errors"
	"sync"

	"draftmark/internal/review"
)

// testHeader marks output of TestEncryptor.
var testHeader = []byte("DMSEAL\x00\x00")

var (
	errTestHeader     = errors.New("invalid test encryption header")
	errWrongTestPassphrase = errors.New("wrong passphrase")
)

// TestEncryptor is a deterministic stand-in for AgeEncryptor. Seal prepends
// a fixed header and Open strips it. When Passphrase is set, Unlock rejects
// any other passphrase.
type TestEncryptor struct {
	Passphrase string

	mu      sync.Mutex
	setups  int
	unlocks int
}

var _ review.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setups++
	return nil
}

func (e *TestEncryptor) Seal(plaintext []byte) ([]byte, error) {
	return append(bytes.Clone(testHeader), plaintext...), nil
}

func (e *TestEncryptor) Unlock(passphrase string) (review.Opener, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unlocks++
	if e.Passphrase != "" && passphrase != e.Passphrase {
		return nil, errWrongTestPassphrase
	}
	return TestOpener{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// Unlocks returns how many times Unlock was called.
func (e *TestEncryptor) Unlocks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unlocks
}

// TestOpener strips the header added by TestEncryptor.
type TestOpener struct{}

var _ review.Opener = TestOpener{}

func (TestOpener) Open(ciphertext []byte) ([]byte, error) {
	plaintext, ok := bytes.CutPrefix(ciphertext, testHeader)
	if !ok {
		return nil, errTestHeader
	}
	return plaintext, nil
}
