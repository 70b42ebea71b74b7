package backend

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// LoginCredential is a stored vendor account. More than one can be kept;
// the one flagged default is used when login is invoked without a name.
type LoginCredential struct {
	Name     string    `toml:"name"`
	Username string    `toml:"username"`
	Password string    `toml:"password"`
	UUID     uuid.UUID `toml:"uuid"`
	Default  bool      `toml:"default,omitempty"`
}

func (c *LoginCredential) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	if c.Username == "" {
		return errors.New("username is required")
	}
	if c.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

type CredentialStorage interface {
	GetCredentialByName(name string) (*LoginCredential, error)
	DefaultCredential() (*LoginCredential, error)
	AddCredential(cred *LoginCredential) error
	DeleteCredentialByName(name string) error
	ListCredentials() ([]*LoginCredential, error)
}

// TOML storage implementation

type TomlCredentialStorage struct {
	filePath    string
	Credentials map[string]*LoginCredential `toml:"credentials"`
}

func NewTomlCredentialStorage(filePath string) (CredentialStorage, error) {
	storage := &TomlCredentialStorage{
		filePath:    filePath,
		Credentials: make(map[string]*LoginCredential),
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		err = os.MkdirAll(filepath.Dir(filePath), 0o755)
		if err != nil {
			return nil, err
		}
		f, err := os.Create(filePath)
		if err != nil {
			return nil, err
		}
		f.Close()
		_ = os.Chmod(filePath, 0o600)
	}

	if err := storage.loadFromFile(); err != nil {
		return nil, err
	}

	return storage, nil
}

func (s *TomlCredentialStorage) loadFromFile() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // no file yet, treat as empty
		}
		return err
	}

	return toml.Unmarshal(data, s)
}

func (s *TomlCredentialStorage) saveToFile() error {
	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(s); err != nil {
		return err
	}
	err := os.WriteFile(s.filePath, buf.Bytes(), 0o600)
	if err != nil {
		return errors.New("failed to save credential storage: " + err.Error())
	}
	return nil
}

func (s *TomlCredentialStorage) GetCredentialByName(name string) (*LoginCredential, error) {
	for _, cred := range s.Credentials {
		if cred.Name == name {
			return cred, nil
		}
	}
	return nil, errors.New("credential not found")
}

func (s *TomlCredentialStorage) DefaultCredential() (*LoginCredential, error) {
	if len(s.Credentials) == 1 {
		for _, cred := range s.Credentials {
			return cred, nil
		}
	}
	for _, cred := range s.Credentials {
		if cred.Default {
			return cred, nil
		}
	}
	return nil, errors.New("no default credential configured")
}

func (s *TomlCredentialStorage) AddCredential(cred *LoginCredential) error {
	if cred.UUID == uuid.Nil {
		cred.UUID = uuid.New()
	}
	if err := cred.Validate(); err != nil {
		return err
	}

	s.Credentials[cred.UUID.String()] = cred
	return s.saveToFile()
}

func (s *TomlCredentialStorage) DeleteCredentialByName(name string) error {
	for id, cred := range s.Credentials {
		if cred.Name == name {
			delete(s.Credentials, id)
			return s.saveToFile()
		}
	}
	return errors.New("credential not found")
}

func (s *TomlCredentialStorage) ListCredentials() ([]*LoginCredential, error) {
	creds := make([]*LoginCredential, 0, len(s.Credentials))
	for _, cred := range s.Credentials {
		creds = append(creds, cred)
	}
	return creds, nil
}
