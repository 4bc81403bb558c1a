package state

import (
	"errors"
	"fmt"
)

// StateVersion is the layout of the records in this package. Bump it when a
// stored record changes shape so an old data dir is refused instead of
// misread.
const StateVersion uint32 = 1

// ErrStateVersionMismatch is returned when the data dir was written by a
// binary with a different record layout.
var ErrStateVersionMismatch = errors.New("state: schema version mismatch")

var stateVersionKey = []byte("state/version")

func (m *Manager) SetStateVersion(version uint32) error {
	return m.KVPut(stateVersionKey, version)
}

// StateVersion returns the stored layout version and whether one was written.
func (m *Manager) StateVersion() (uint32, bool, error) {
	var stored uint32
	ok, err := m.KVGet(stateVersionKey, &stored)
	return stored, ok, err
}

// CheckStateVersion accepts an empty trie or one stamped with StateVersion.
func (m *Manager) CheckStateVersion() error {
	version, ok, err := m.StateVersion()
	if err != nil {
		return err
	}
	if ok && version != StateVersion {
		return fmt.Errorf("%w: on-disk=%d expected=%d", ErrStateVersionMismatch, version, StateVersion)
	}
	return nil
}
