package archive

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"draftmark/internal/review"
)

// PassphraseFunc supplies the passphrase that unlocks sealed archives.
// It is called at most once per Codec, on the first read.
type PassphraseFunc func() (string, error)

// Codec turns snapshots into archive objects and back. With an encryptor
// the JSON document is sealed and the object name gains a ".age" suffix.
type Codec struct {
	encryptor  review.Encryptor
	passphrase PassphraseFunc

	once    sync.Once
	opener  review.Opener
	openErr error
}

// NewCodec returns a Codec. A nil encryptor stores plaintext JSON.
func NewCodec(encryptor review.Encryptor, passphrase PassphraseFunc) *Codec {
	return &Codec{encryptor: encryptor, passphrase: passphrase}
}

// Ext is the object name suffix for this codec.
func (c *Codec) Ext() string {
	if c.encryptor == nil {
		return ".json"
	}
	return ".json.age"
}

// ContentType is reported to object stores.
func (c *Codec) ContentType() string {
	if c.encryptor == nil {
		return "application/json"
	}
	return "text/plain"
}

func (c *Codec) Encode(s *review.Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	if c.encryptor == nil {
		return data, nil
	}
	sealed, err := c.encryptor.Seal(data)
	if err != nil {
		return nil, fmt.Errorf("sealing snapshot: %w", err)
	}
	return sealed, nil
}

func (c *Codec) Decode(data []byte) (*review.Snapshot, error) {
	if c.encryptor != nil {
		opener, err := c.unlock()
		if err != nil {
			return nil, err
		}
		data, err = opener.Open(data)
		if err != nil {
			return nil, fmt.Errorf("opening snapshot: %w", err)
		}
	}

	var s review.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &s, nil
}

func (c *Codec) unlock() (review.Opener, error) {
	c.once.Do(func() {
		if c.passphrase == nil {
			c.openErr = fmt.Errorf("sealed archives need a passphrase")
			return
		}
		pass, err := c.passphrase()
		if err != nil {
			c.openErr = fmt.Errorf("reading passphrase: %w", err)
			return
		}
		c.opener, c.openErr = c.encryptor.Unlock(pass)
		if c.openErr != nil {
			c.openErr = fmt.Errorf("unlocking archive key: %w", c.openErr)
		}
	})
	return c.opener, c.openErr
}

// versionDir escapes a version id into a single path segment. A leading
// dot is escaped too, so "." and ".." never name the root or its parent.
func versionDir(versionID string) string {
	seg := url.PathEscape(versionID)
	if strings.HasPrefix(seg, ".") {
		seg = "%2E" + seg[1:]
	}
	return seg
}

// objectName is "<revision><ext>" within a version directory.
func (c *Codec) objectName(revision int) string {
	return strconv.Itoa(revision) + c.Ext()
}

// parseRevision reverses objectName. It reports false for foreign names.
func (c *Codec) parseRevision(name string) (int, bool) {
	base, ok := strings.CutSuffix(name, c.Ext())
	if !ok {
		return 0, false
	}
	rev, err := strconv.Atoi(base)
	if err != nil || rev < 1 {
		return 0, false
	}
	return rev, true
}
