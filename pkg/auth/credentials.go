package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
)

// Environment variables holding the four OAuth credentials
const (
	EnvConsumerKey       = "CONSUMER_KEY"
	EnvConsumerSecret    = "CONSUMER_SECRET"
	EnvAccessToken       = "ACCESS_TOKEN"
	EnvAccessTokenSecret = "ACCESS_TOKEN_SECRET"
)

// DefaultProfile is the profile name used when none is given
const DefaultProfile = "default"

// Credentials holds the OAuth 1.0a keys used to sign API requests
type Credentials struct {
	Profile           string    `json:"profile,omitempty"`
	ConsumerKey       string    `json:"consumer_key"`
	ConsumerSecret    string    `json:"consumer_secret"`
	AccessToken       string    `json:"access_token"`
	AccessTokenSecret string    `json:"access_token_secret"`
	LastModified      time.Time `json:"last_modified,omitempty"`
}

// MissingError reports which credential variables are absent from the
// environment
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing credentials: %s", strings.Join(e.Names, ", "))
}

// FromEnv reads the four credential variables from the environment.
// All four must be present; a MissingError lists absent names.
func FromEnv() (*Credentials, error) {
	creds := &Credentials{
		ConsumerKey:       os.Getenv(EnvConsumerKey),
		ConsumerSecret:    os.Getenv(EnvConsumerSecret),
		AccessToken:       os.Getenv(EnvAccessToken),
		AccessTokenSecret: os.Getenv(EnvAccessTokenSecret),
	}

	if err := creds.Validate(); err != nil {
		return nil, err
	}

	return creds, nil
}

// Validate checks that every credential is present
func (c *Credentials) Validate() error {
	var missing []string

	if c.ConsumerKey == "" {
		missing = append(missing, EnvConsumerKey)
	}
	if c.ConsumerSecret == "" {
		missing = append(missing, EnvConsumerSecret)
	}
	if c.AccessToken == "" {
		missing = append(missing, EnvAccessToken)
	}
	if c.AccessTokenSecret == "" {
		missing = append(missing, EnvAccessTokenSecret)
	}

	if len(missing) > 0 {
		return &MissingError{Names: missing}
	}

	return nil
}

// HTTPClient returns an http.Client that signs every request with the
// OAuth 1.0a credentials
func (c *Credentials) HTTPClient(ctx context.Context) *http.Client {
	config := oauth1.NewConfig(c.ConsumerKey, c.ConsumerSecret)
	token := oauth1.NewToken(c.AccessToken, c.AccessTokenSecret)
	return config.Client(ctx, token)
}

// Sanitize creates a copy of the credentials with sensitive data masked
func (c *Credentials) Sanitize() *Credentials {
	if c == nil {
		return nil
	}

	return &Credentials{
		Profile:           c.Profile,
		ConsumerKey:       maskString(c.ConsumerKey),
		ConsumerSecret:    maskString(c.ConsumerSecret),
		AccessToken:       maskString(c.AccessToken),
		AccessTokenSecret: maskString(c.AccessTokenSecret),
		LastModified:      c.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves credentials under their profile name
	Store(creds *Credentials) error

	// Retrieve gets credentials for a specific profile
	Retrieve(profile string) (*Credentials, error)

	// List returns all stored credential profiles
	List() ([]*Credentials, error)

	// Delete removes credentials for a specific profile
	Delete(profile string) error

	// Exists checks if credentials exist for a profile
	Exists(profile string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores   []CredentialStore
	backends []string
}

// NewManager creates a new credential manager with appropriate storage backends
func NewManager() (*Manager, error) {
	m := &Manager{}

	// Try keyring first (system keychain)
	keyringStore, err := NewKeyringStore()
	if err == nil {
		m.stores = append(m.stores, keyringStore)
		m.backends = append(m.backends, "system keychain")
	}

	// Always add encrypted file store as fallback
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	m.stores = append(m.stores, encryptedStore)
	m.backends = append(m.backends, "encrypted file")

	return m, nil
}

// Backends lists the storage backends in the order they are tried
func (m *Manager) Backends() []string {
	return m.backends
}

// Store saves credentials using the first available store
func (m *Manager) Store(creds *Credentials) error {
	if creds == nil {
		return ErrInvalidCredentials
	}
	if creds.Profile == "" {
		creds.Profile = DefaultProfile
	}
	if err := creds.Validate(); err != nil {
		return err
	}

	creds.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(creds); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets credentials from the first store that has them
func (m *Manager) Retrieve(profile string) (*Credentials, error) {
	for _, store := range m.stores {
		if creds, err := store.Retrieve(profile); err == nil && creds != nil {
			return creds, nil
		}
	}
	return nil, fmt.Errorf("credentials not found for profile: %s", profile)
}

// RetrieveDefault resolves credentials the way a run wants them: the
// environment wins, then the default stored profile, then whichever
// stored profile was saved most recently.
func (m *Manager) RetrieveDefault() (*Credentials, error) {
	creds, envErr := FromEnv()
	if envErr == nil {
		return creds, nil
	}

	if creds, err := m.Retrieve(DefaultProfile); err == nil {
		return creds, nil
	}

	if stored, err := m.List(); err == nil && len(stored) > 0 {
		newest := stored[0]
		for _, c := range stored[1:] {
			if c.LastModified.After(newest.LastModified) {
				newest = c
			}
		}
		return newest, nil
	}

	// The environment error carries the variable names the user needs
	return nil, envErr
}

// List returns all stored credential profiles from all stores
func (m *Manager) List() ([]*Credentials, error) {
	profileMap := make(map[string]*Credentials)

	for _, store := range m.stores {
		stored, err := store.List()
		if err != nil {
			continue
		}
		for _, creds := range stored {
			// Use the most recently modified version
			if existing, ok := profileMap[creds.Profile]; !ok || creds.LastModified.After(existing.LastModified) {
				profileMap[creds.Profile] = creds
			}
		}
	}

	var result []*Credentials
	for _, creds := range profileMap {
		result = append(result, creds)
	}

	return result, nil
}

// Delete removes credentials from all stores
func (m *Manager) Delete(profile string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(profile); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("credentials not found for profile: %s", profile)
	}

	return nil
}

// DeleteAll removes all stored credentials
func (m *Manager) DeleteAll() error {
	stored, err := m.List()
	if err != nil {
		return err
	}

	for _, creds := range stored {
		_ = m.Delete(creds.Profile) // Ignore individual errors
	}

	return nil
}

// Resolve loads the credentials a run should use. An explicit profile
// is looked up in the stores; otherwise the environment is consulted
// first and stored credentials fill in behind it.
func Resolve(profile string) (*Credentials, error) {
	manager, err := NewManager()
	if err != nil {
		if profile != "" {
			return nil, err
		}
		return FromEnv()
	}

	if profile != "" {
		return manager.Retrieve(profile)
	}
	return manager.RetrieveDefault()
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "twarchive")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "twarchive")
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "twarchive")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "twarchive")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)
