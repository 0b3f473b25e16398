// Package credential keeps the Redmine API key in the system keyring and
// decides which configured key wins.
package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
)

const serviceName = "redtime"

// APIKeyName is the keyring key holding the Redmine API key.
const APIKeyName = "redmine-api-key"

// APIKeyEnv overrides every other API key source.
const APIKeyEnv = "REDTIME_API_KEY"

// ErrNoAPIKey is returned by ResolveAPIKey when no source has a key.
var ErrNoAPIKey = errors.New("no Redmine API key configured; run `redtime login`")

// Source names where a resolved API key came from.
type Source string

const (
	SourceNone    Source = "none"
	SourceEnv     Source = "env"
	SourceConfig  Source = "config"
	SourceKeyring Source = "keyring"
)

// openFunc is replaced in tests.
var openFunc = openKeyring

func openKeyring() (keyring.Keyring, error) {
	home, _ := os.UserHomeDir()
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(home, ".config", "redtime", "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("redtime-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// withRing opens the keyring and runs fn against it, wrapping fn's error
// with action and key.
func withRing(action, key string, fn func(keyring.Keyring) error) error {
	ring, err := openFunc()
	if err != nil {
		return err
	}
	if err := fn(ring); err != nil {
		return fmt.Errorf("%s credential %q: %w", action, key, err)
	}
	return nil
}

// Get retrieves a credential value by key.
func Get(key string) (string, error) {
	var value string
	err := withRing("getting", key, func(ring keyring.Keyring) error {
		item, err := ring.Get(key)
		value = string(item.Data)
		return err
	})
	return value, err
}

// Set stores a credential value under key.
func Set(key string, value string) error {
	return withRing("setting", key, func(ring keyring.Keyring) error {
		return ring.Set(keyring.Item{
			Key:         key,
			Data:        []byte(value),
			Label:       "redtime: " + key,
			Description: "Redmine API access key",
		})
	})
}

// Delete removes a credential by key.
func Delete(key string) error {
	return withRing("deleting", key, func(ring keyring.Keyring) error {
		return ring.Remove(key)
	})
}

// ResolveAPIKey picks the API key from, in order, the REDTIME_API_KEY
// environment variable, the config file value and the keyring, and
// reports which one it used.
func ResolveAPIKey(configured string) (string, Source, error) {
	if key := os.Getenv(APIKeyEnv); key != "" {
		return key, SourceEnv, nil
	}
	if configured != "" {
		return configured, SourceConfig, nil
	}

	key, err := Get(APIKeyName)
	switch {
	case errors.Is(err, keyring.ErrKeyNotFound):
		return "", SourceNone, ErrNoAPIKey
	case err != nil:
		return "", SourceNone, err
	case key == "":
		return "", SourceNone, ErrNoAPIKey
	}
	return key, SourceKeyring, nil
}
