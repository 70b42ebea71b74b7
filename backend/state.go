package backend

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// State is what survives between CLI invocations: the session token from
// the last login and the last-known working item, so successive commands
// share login and directory context. The working path is authoritative over
// the ID; the remote may have recreated the folder under a new ID, so the
// path is re-resolved on use.
type State struct {
	Token       SessionToken `toml:"token"`
	WorkingID   ItemID       `toml:"working_id"`
	WorkingPath string       `toml:"working_path"`
}

type StateStore struct {
	filePath string
}

func NewStateStore(filePath string) (*StateStore, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
			return nil, err
		}
	}
	return &StateStore{filePath: filePath}, nil
}

// Load reads the persisted state. A missing file is an empty state, not an
// error.
func (s *StateStore) Load() (*State, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{WorkingPath: "/"}, nil
		}
		return nil, err
	}

	var st State
	if err := toml.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	if st.WorkingPath == "" {
		st.WorkingPath = "/"
	}
	return &st, nil
}

func (s *StateStore) Save(st *State) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(st); err != nil {
		return err
	}
	if err := os.WriteFile(s.filePath, buf.Bytes(), 0o600); err != nil {
		return errors.New("failed to save state: " + err.Error())
	}
	return nil
}

// Clear removes the persisted state, logging the user out locally.
func (s *StateStore) Clear() error {
	err := os.Remove(s.filePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
