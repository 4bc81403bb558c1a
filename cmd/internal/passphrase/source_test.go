package passphrase

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceReadsEnvironment(t *testing.T) {
	t.Setenv("CDFI_TEST_PASS", "hunter2")
	src := NewSource("CDFI_TEST_PASS", "")
	value, err := src.Get()
	require.NoError(t, err)
	require.Equal(t, "hunter2", value)

	// Cached after the first read.
	t.Setenv("CDFI_TEST_PASS", "changed")
	value, err = src.Get()
	require.NoError(t, err)
	require.Equal(t, "hunter2", value)
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("CDFI_TEST_PASS", "   ")
	_, err := NewSource("CDFI_TEST_PASS", "wallet passphrase").Get()
	require.ErrorContains(t, err, "CDFI_TEST_PASS is set but empty")
}

func scripted(answers ...string) Prompter {
	return func(string) (string, error) {
		if len(answers) == 0 {
			return "", errors.New("no more input")
		}
		next := answers[0]
		answers = answers[1:]
		return next, nil
	}
}

func TestSourcePromptsWhenEnvironmentUnset(t *testing.T) {
	src := NewSource("CDFI_TEST_PASS_UNSET", "").WithPrompter(scripted("typed"))
	value, err := src.Get()
	require.NoError(t, err)
	require.Equal(t, "typed", value)
}

func TestSourceConfirmation(t *testing.T) {
	_, err := NewSource("", "wallet passphrase").WithConfirmation().WithPrompter(scripted("one", "two")).Get()
	require.ErrorContains(t, err, "wallet passphrase entries do not match")

	value, err := NewSource("", "").WithConfirmation().WithPrompter(scripted("same", "same")).Get()
	require.NoError(t, err)
	require.Equal(t, "same", value)

	_, err = NewSource("", "").WithPrompter(scripted("   ")).Get()
	require.ErrorContains(t, err, "cannot be empty")
}

func TestSourceWithoutTerminal(t *testing.T) {
	noTTY := func(string) (string, error) { return "", errNoTerminal }
	_, err := NewSource("CDFI_TEST_PASS_UNSET", "").WithPrompter(noTTY).Get()
	require.ErrorContains(t, err, "set CDFI_TEST_PASS_UNSET or run interactively")
}
