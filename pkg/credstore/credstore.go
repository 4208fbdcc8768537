// Package credstore persists the credentials the source bridges need
// (Exchange account, timetable portal login, To-Do token) in an
// encrypted file. Secrets are encrypted per value with AES-GCM; the
// master key lives in the OS keyring, with a file fallback for
// headless machines.
package credstore

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"time"
)

// Credential is one named secret with optional account metadata. The
// Secret field is stored encrypted when persisted.
type Credential struct {
	// Name identifies the credential, e.g. "exchange", "timetable", "todo".
	Name string
	// Username is the account the secret belongs to. Stored in the clear.
	Username string
	// Secret is the password or token. Encrypted at rest.
	Secret string
	// Updated is when the credential was last written.
	Updated time.Time
}

// Store holds the in-memory credential set backed by a single file.
type Store struct {
	filePath string
	key      []byte
	creds    map[string]*Credential
}

// Open loads (or creates) the credential file at filePath using the
// given 32-byte master key.
func Open(filePath string, key []byte) (*Store, error) {
	s := &Store{
		filePath: filePath,
		key:      key,
		creds:    make(map[string]*Credential),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	dec := gob.NewDecoder(bytes.NewReader(data))
	return dec.Decode(&s.creds)
}

func (s *Store) save() error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s.creds); err != nil {
		return err
	}
	return os.WriteFile(s.filePath, buf.Bytes(), 0600)
}

// Set encrypts and stores a credential, replacing any previous value
// under the same name.
func (s *Store) Set(c Credential) error {
	sealed, err := EncryptValue(c.Secret, s.key)
	if err != nil {
		return err
	}
	c.Secret = string(sealed)
	c.Updated = time.Now().UTC()
	s.creds[c.Name] = &c
	return s.save()
}

// Get returns the decrypted credential.
func (s *Store) Get(name string) (*Credential, error) {
	c, ok := s.creds[name]
	if !ok {
		return nil, fmt.Errorf("credential not found: %s", name)
	}
	plain, err := DecryptValue([]byte(c.Secret), s.key)
	if err != nil {
		return nil, err
	}
	out := *c
	out.Secret = string(plain)
	return &out, nil
}

// Delete removes a credential.
func (s *Store) Delete(name string) error {
	if _, ok := s.creds[name]; !ok {
		return fmt.Errorf("credential not found: %s", name)
	}
	delete(s.creds, name)
	return s.save()
}

// Names lists the stored credential names.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.creds))
	for name := range s.creds {
		names = append(names, name)
	}
	return names
}
