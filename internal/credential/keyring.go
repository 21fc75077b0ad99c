package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "carcert"

// Key names stored in the keyring.
const (
	KeyVAPIDPrivate = "vapid_private_key"
	KeyVAPIDPublic  = "vapid_public_key"
)

var ErrNotFound = errors.New("credential not found")

// Config selects the keyring backend.
type Config struct {
	Backend string // system, file or memory
	FileDir string
	// FilePassword unlocks the file backend. Empty uses a fixed key.
	FilePassword string
}

// Store reads and writes secrets in a keyring.
type Store struct {
	ring keyring.Keyring
}

// New wraps an already opened keyring.
func New(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Open opens the keyring described by cfg.
func Open(cfg Config) (*Store, error) {
	if cfg.Backend == "memory" {
		return New(keyring.NewArrayKeyring(nil)), nil
	}

	password := cfg.FilePassword
	if password == "" {
		password = "carcert-file-key"
	}
	kc := keyring.Config{
		ServiceName:              serviceName,
		FileDir:                  cfg.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(password),
		KeychainTrustApplication: true,
	}
	switch cfg.Backend {
	case "file":
		kc.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
	default:
		kc.AllowedBackends = []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		}
	}

	ring, err := keyring.Open(kc)
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return New(ring), nil
}

// Get returns the secret stored under key.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

func (s *Store) Set(key, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: serviceName + " " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	err := s.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// KeyPair is a VAPID key pair in the base64url form webpush uses.
type KeyPair struct {
	Public  string
	Private string
}

// VAPIDKeys returns the stored key pair. If none is stored, generate is
// called and its result saved. A public key given in configuration wins
// over the stored one but must come with a stored private key.
func (s *Store) VAPIDKeys(configuredPublic string, generate func() (pub, priv string, err error)) (KeyPair, error) {
	priv, err := s.Get(KeyVAPIDPrivate)
	switch {
	case err == nil:
		pub := configuredPublic
		if pub == "" {
			if pub, err = s.Get(KeyVAPIDPublic); err != nil {
				return KeyPair{}, fmt.Errorf("vapid public key: %w", err)
			}
		}
		return KeyPair{Public: pub, Private: priv}, nil
	case !errors.Is(err, ErrNotFound):
		return KeyPair{}, err
	case configuredPublic != "":
		return KeyPair{}, fmt.Errorf("vapid public key configured but private key missing: %w", ErrNotFound)
	}

	pub, priv, err := generate()
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate vapid keys: %w", err)
	}
	if err := s.Set(KeyVAPIDPrivate, priv); err != nil {
		return KeyPair{}, err
	}
	if err := s.Set(KeyVAPIDPublic, pub); err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Public: pub, Private: priv}, nil
}
