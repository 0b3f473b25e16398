package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

func useArrayKeyring(t *testing.T, items ...keyring.Item) *keyring.ArrayKeyring {
	t.Helper()
	ring := keyring.NewArrayKeyring(items)
	prev := openFunc
	openFunc = func() (keyring.Keyring, error) { return ring, nil }
	t.Cleanup(func() { openFunc = prev })
	return ring
}

func TestSetGetDelete(t *testing.T) {
	useArrayKeyring(t)

	if err := Set(APIKeyName, "abc123"); err != nil {
		t.Fatalf("Set() unexpected error: %v", err)
	}
	got, err := Get(APIKeyName)
	if err != nil || got != "abc123" {
		t.Fatalf("Get() = %q, %v", got, err)
	}
	if err := Delete(APIKeyName); err != nil {
		t.Fatalf("Delete() unexpected error: %v", err)
	}
	if _, err := Get(APIKeyName); !errors.Is(err, keyring.ErrKeyNotFound) {
		t.Errorf("Get() after delete = %v, want ErrKeyNotFound", err)
	}
}

func TestResolveAPIKey(t *testing.T) {
	tests := []struct {
		name       string
		env        string
		configured string
		stored     string
		want       string
		wantSource Source
		wantErr    error
	}{
		{name: "env wins", env: "from-env", configured: "from-config", stored: "from-ring", want: "from-env", wantSource: SourceEnv},
		{name: "config before keyring", configured: "from-config", stored: "from-ring", want: "from-config", wantSource: SourceConfig},
		{name: "keyring fallback", stored: "from-ring", want: "from-ring", wantSource: SourceKeyring},
		{name: "nothing configured", wantErr: ErrNoAPIKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(APIKeyEnv, tt.env)
			var items []keyring.Item
			if tt.stored != "" {
				items = append(items, keyring.Item{Key: APIKeyName, Data: []byte(tt.stored)})
			}
			useArrayKeyring(t, items...)

			got, source, err := ResolveAPIKey(tt.configured)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ResolveAPIKey() error = %v, want %v", err, tt.wantErr)
				}
				if source != SourceNone {
					t.Errorf("source = %s, want none", source)
				}
				return
			}
			if err != nil || got != tt.want || source != tt.wantSource {
				t.Errorf("ResolveAPIKey() = %q, %s, %v; want %q from %s", got, source, err, tt.want, tt.wantSource)
			}
		})
	}
}
