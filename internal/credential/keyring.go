// Package credential stores the mailbox password outside the config file.
package credential

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/99designs/keyring"
)

const serviceName = "certledger"

// ErrNotFound is returned when no secret is stored for an account.
var ErrNotFound = errors.New("credential not found")

// Vault reads and writes per-account mailbox passwords.
type Vault interface {
	Get(account string) (string, error)
	Set(account, secret string) error
}

// Key returns the vault key under which account's password is stored.
func Key(account string) string {
	return "mailbox:" + account
}

// Keyring is a Vault backed by the operating system keyring, falling back
// to an encrypted file under Dir.
type Keyring struct {
	// Dir holds the file backend. Empty means ~/.config/certledger/credentials.
	Dir string

	once sync.Once
	ring keyring.Keyring
	err  error
}

// NewKeyringFrom wraps an already opened keyring.
func NewKeyringFrom(ring keyring.Keyring) *Keyring {
	k := &Keyring{ring: ring}
	k.once.Do(func() {})
	return k
}

func (k *Keyring) open() (keyring.Keyring, error) {
	k.once.Do(func() {
		dir := k.Dir
		if dir == "" {
			dir = "~/.config/certledger/credentials"
		}
		k.ring, k.err = keyring.Open(keyring.Config{
			ServiceName: serviceName,
			AllowedBackends: []keyring.BackendType{
				keyring.KeychainBackend,
				keyring.SecretServiceBackend,
				keyring.WinCredBackend,
				keyring.PassBackend,
				keyring.FileBackend,
			},
			FileDir:                  filepath.ToSlash(dir),
			FilePasswordFunc:         keyring.FixedStringPrompt("certledger-file-key"),
			KeychainTrustApplication: true,
		})
		if k.err != nil {
			k.err = fmt.Errorf("opening keyring: %w", k.err)
		}
	})
	return k.ring, k.err
}

// Get retrieves the password for account.
func (k *Keyring) Get(account string) (string, error) {
	ring, err := k.open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(Key(account))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("mailbox password for %q: %w", account, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential for %q: %w", account, err)
	}

	return string(item.Data), nil
}

// Set stores the password for account.
func (k *Keyring) Set(account, secret string) error {
	ring, err := k.open()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   Key(account),
		Data:  []byte(secret),
		Label: "CertLedger mailbox " + account,
	})
	if err != nil {
		return fmt.Errorf("setting credential for %q: %w", account, err)
	}

	return nil
}

// Static is an in-memory Vault.
type Static struct {
	mu      sync.Mutex
	secrets map[string]string
}

// NewStatic returns a vault holding the given account passwords.
func NewStatic(secrets map[string]string) *Static {
	s := &Static{secrets: make(map[string]string, len(secrets))}
	for k, v := range secrets {
		s.secrets[k] = v
	}
	return s
}

// Get returns the password for account or ErrNotFound.
func (s *Static) Get(account string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	secret, ok := s.secrets[account]
	if !ok {
		return "", fmt.Errorf("mailbox password for %q: %w", account, ErrNotFound)
	}
	return secret, nil
}

// Set stores the password for account.
func (s *Static) Set(account, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[account] = secret
	return nil
}
