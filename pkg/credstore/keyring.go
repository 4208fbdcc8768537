package credstore

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
)

const (
	keyringApp   = "taskfuse"
	keyringField = "master"
	keyFileName  = "credstore.key"
)

// KeyStore abstracts where the 32-byte master key lives.
type KeyStore interface {
	SetKey() ([]byte, error)
	GetKey() ([]byte, error)
	DeleteKey() error
}

// SystemKeyring stores the master key in the OS keyring service.
type SystemKeyring struct {
	AppName  string
	KeyField string
}

// NewSystemKeyring uses the daemon's default service/field names.
func NewSystemKeyring() *SystemKeyring {
	return &SystemKeyring{AppName: keyringApp, KeyField: keyringField}
}

func (k *SystemKeyring) SetKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := keyring.Set(k.AppName, k.KeyField, hex.EncodeToString(key)); err != nil {
		return nil, err
	}
	return key, nil
}

func (k *SystemKeyring) GetKey() ([]byte, error) {
	stored, err := keyring.Get(k.AppName, k.KeyField)
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(stored)
	if err != nil {
		return nil, fmt.Errorf("invalid key format: %w", err)
	}
	return key, nil
}

func (k *SystemKeyring) DeleteKey() error {
	return keyring.Delete(k.AppName, k.KeyField)
}

// FileKeyStore keeps the master key in a 0600 file for machines with
// no keyring service (headless servers, containers).
type FileKeyStore struct {
	configDir string
}

// NewFileKeyStore stores the key file under configDir.
func NewFileKeyStore(configDir string) *FileKeyStore {
	return &FileKeyStore{configDir: configDir}
}

func (f *FileKeyStore) keyPath() string {
	return filepath.Join(f.configDir, keyFileName)
}

func (f *FileKeyStore) SetKey() ([]byte, error) {
	if err := os.MkdirAll(f.configDir, 0755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	// Atomic write: temp file then rename.
	tmp, err := os.CreateTemp(f.configDir, ".credstore.key.tmp.*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(hex.EncodeToString(key)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("write key: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, f.keyPath()); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("rename key file: %w", err)
	}
	return key, nil
}

func (f *FileKeyStore) GetKey() ([]byte, error) {
	data, err := os.ReadFile(f.keyPath())
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("invalid key format: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid key length: expected 32, got %d", len(key))
	}
	return key, nil
}

func (f *FileKeyStore) DeleteKey() error {
	return os.Remove(f.keyPath())
}

// LoadOrCreateKey fetches the master key from the system keyring,
// falling back to the file store when the keyring is unavailable. A
// missing key is generated on first use.
func LoadOrCreateKey(configDir string) ([]byte, error) {
	sys := NewSystemKeyring()
	if key, err := sys.GetKey(); err == nil {
		return key, nil
	}
	if key, err := sys.SetKey(); err == nil {
		return key, nil
	}

	file := NewFileKeyStore(configDir)
	if key, err := file.GetKey(); err == nil {
		return key, nil
	}
	return file.SetKey()
}
