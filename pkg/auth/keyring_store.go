package auth

import (
	"encoding/json"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService  = "twarchive"
	keyringPrefix   = "profile_"
	keyringIndexKey = "profile_index"
)

// KeyringStore implements CredentialStore using the system keychain
type KeyringStore struct{}

// NewKeyringStore creates a new keyring-based credential store
func NewKeyringStore() (*KeyringStore, error) {
	// Test if keyring is available
	testKey := "test_availability"
	err := keyring.Set(keyringService, testKey, "test")
	if err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves credentials to the system keychain
func (k *KeyringStore) Store(creds *Credentials) error {
	if creds == nil || creds.Profile == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	key := keyringPrefix + creds.Profile
	if err := keyring.Set(keyringService, key, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	return k.indexAdd(creds.Profile)
}

// Retrieve gets credentials from the system keychain
func (k *KeyringStore) Retrieve(profile string) (*Credentials, error) {
	if profile == "" {
		return nil, ErrInvalidCredentials
	}

	key := keyringPrefix + profile
	data, err := keyring.Get(keyringService, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(data), &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}

	return &creds, nil
}

// List returns all stored profiles from the keychain. The underlying
// keyring APIs cannot enumerate keys, so an index entry tracks the
// profiles this store has written.
func (k *KeyringStore) List() ([]*Credentials, error) {
	profiles, err := k.readIndex()
	if err != nil {
		return []*Credentials{}, nil
	}

	var result []*Credentials
	for _, profile := range profiles {
		creds, err := k.Retrieve(profile)
		if err != nil {
			continue
		}
		result = append(result, creds)
	}

	return result, nil
}

// Delete removes credentials from the system keychain
func (k *KeyringStore) Delete(profile string) error {
	if profile == "" {
		return ErrInvalidCredentials
	}

	key := keyringPrefix + profile
	err := keyring.Delete(keyringService, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	return k.indexRemove(profile)
}

// Exists checks if credentials exist in the keychain
func (k *KeyringStore) Exists(profile string) bool {
	if profile == "" {
		return false
	}

	key := keyringPrefix + profile
	_, err := keyring.Get(keyringService, key)
	return err == nil
}

func (k *KeyringStore) readIndex() ([]string, error) {
	data, err := keyring.Get(keyringService, keyringIndexKey)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	var profiles []string
	if err := json.Unmarshal([]byte(data), &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (k *KeyringStore) writeIndex(profiles []string) error {
	if len(profiles) == 0 {
		err := keyring.Delete(keyringService, keyringIndexKey)
		if err != nil && err != keyring.ErrNotFound {
			return err
		}
		return nil
	}

	data, err := json.Marshal(profiles)
	if err != nil {
		return err
	}
	return keyring.Set(keyringService, keyringIndexKey, string(data))
}

func (k *KeyringStore) indexAdd(profile string) error {
	profiles, err := k.readIndex()
	if err != nil {
		return err
	}
	for _, p := range profiles {
		if p == profile {
			return nil
		}
	}
	return k.writeIndex(append(profiles, profile))
}

func (k *KeyringStore) indexRemove(profile string) error {
	profiles, err := k.readIndex()
	if err != nil {
		return err
	}
	kept := profiles[:0]
	for _, p := range profiles {
		if p != profile {
			kept = append(kept, p)
		}
	}
	return k.writeIndex(kept)
}
