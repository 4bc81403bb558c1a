// Package passphrase resolves keystore passphrases for the command line
// tools, from the environment or an interactive terminal prompt.
package passphrase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Prompter reads one secret from the operator. The default implementation
// reads from the controlling terminal without echo.
type Prompter func(prompt string) (string, error)

// Source lazily resolves a passphrase and caches the outcome, so every call
// after the first returns the same value or error.
type Source struct {
	envVar  string
	label   string
	confirm bool
	lookup  func(string) (string, bool)
	prompt  Prompter

	once  sync.Once
	value string
	err   error
}

// NewSource checks envVar before prompting on the terminal. label names the
// secret in prompts and errors.
func NewSource(envVar, label string) *Source {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "keystore passphrase"
	}
	return &Source{
		envVar: strings.TrimSpace(envVar),
		label:  label,
		lookup: os.LookupEnv,
		prompt: terminalPrompt,
	}
}

// WithConfirmation makes an interactive prompt ask twice and reject a
// mismatch. Environment values are taken as-is.
func (s *Source) WithConfirmation() *Source {
	s.confirm = true
	return s
}

// WithPrompter replaces the terminal prompt.
func (s *Source) WithPrompter(p Prompter) *Source {
	s.prompt = p
	return s
}

// Get returns the passphrase, resolving it on first use. Blank passphrases
// are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() { s.value, s.err = s.resolve() })
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if value, ok := s.lookup(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%s is set but empty", s.envVar)
			}
			return value, nil
		}
	}
	if s.prompt == nil {
		return "", s.unavailable()
	}
	value, err := s.prompt(fmt.Sprintf("Enter %s: ", s.label))
	if errors.Is(err, errNoTerminal) {
		return "", s.unavailable()
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", s.label, err)
	}
	if strings.TrimSpace(value) == "" {
		return "", errors.New(s.label + " cannot be empty")
	}
	if s.confirm {
		again, err := s.prompt(fmt.Sprintf("Repeat %s: ", s.label))
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", s.label, err)
		}
		if again != value {
			return "", fmt.Errorf("%s entries do not match", s.label)
		}
	}
	return value, nil
}

func (s *Source) unavailable() error {
	if s.envVar != "" {
		return fmt.Errorf("%s required; set %s or run interactively", s.label, s.envVar)
	}
	return fmt.Errorf("%s required and no terminal available", s.label)
}

var errNoTerminal = errors.New("stdin is not a terminal")

func terminalPrompt(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errNoTerminal
	}
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}
