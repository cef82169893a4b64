package app

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"

	"draftmark/internal/archive"
)

// PassphraseEnv overrides the interactive archive passphrase prompt.
const PassphraseEnv = "DRAFTMARK_ARCHIVE_PASSPHRASE"

var errNoTerminal = errors.New("stdin is not a terminal; set " + PassphraseEnv)

// ArchivePassphrase returns a PassphraseFunc that reads PassphraseEnv, or
// prompts on stderr and reads stdin without echo.
func ArchivePassphrase(prompt string) archive.PassphraseFunc {
	return func() (string, error) {
		if pass := os.Getenv(PassphraseEnv); pass != "" {
			return pass, nil
		}
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return "", errNoTerminal
		}
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		if len(b) == 0 {
			return "", errors.New("empty passphrase")
		}
		return string(b), nil
	}
}
