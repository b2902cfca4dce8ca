//go:build !darwin

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// xdgDir returns $env/skillgap, or ~/fallback/skillgap when the variable is
// unset.
func xdgDir(env, fallback string) string {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "skillgap-data"
		}
		base = filepath.Join(home, fallback)
	}
	return filepath.Join(base, "skillgap")
}

func defaultDataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func apiKeyHint() string {
	return ", or run `skillgap config set llm.api_key <key>` to store it in " + secretsPath()
}

func newPlatformBackend() ConfigBackend {
	b := &fileBackend{path: filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "config.json")}
	if err := b.load(); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] %v. Using default values.\n", err)
	}
	return b
}

// fileBackend keeps settings in a flat JSON object, one entry per key.
type fileBackend struct {
	path   string
	values map[string]any
}

func (b *fileBackend) load() error {
	b.values = map[string]any{}
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not read config file %s: %w", b.path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&b.values); err != nil {
		b.values = map[string]any{}
		return fmt.Errorf("could not parse config file %s: %w", b.path, err)
	}
	return nil
}

func (b *fileBackend) save() error {
	data, err := json.MarshalIndent(b.values, "", "  ")
	if err != nil {
		return err
	}
	return writePrivate(b.path, data)
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	switch v := b.values[key].(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	default:
		return fmt.Sprint(v), true, nil
	}
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	switch v := b.values[key].(type) {
	case nil:
		return 0, false, nil
	case json.Number:
		i, err := strconv.Atoi(v.String())
		if err != nil {
			return 0, true, fmt.Errorf("value %s for %s is not an integer", v, key)
		}
		return i, true, nil
	case string:
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("invalid type %T for %s", v, key)
	}
}

func (b *fileBackend) SetString(key, val string) error {
	b.values[key] = val
	return b.save()
}

func (b *fileBackend) SetInt(key string, val int) error {
	b.values[key] = val
	return b.save()
}

func (b *fileBackend) Delete(key string) error {
	delete(b.values, key)
	return b.save()
}

// writePrivate replaces path with data, readable only by the owner.
func writePrivate(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func secretsPath() string {
	return filepath.Join(defaultDataDir(), "secrets.json")
}

func newSecretStore() SecretStore {
	return fileSecrets{path: secretsPath()}
}

// fileSecrets stores credentials as a JSON object of account -> value in a
// 0600 file next to the data directory.
type fileSecrets struct {
	path string
}

func (s fileSecrets) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	m := map[string]string{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	return m, nil
}

func (s fileSecrets) Get(account string) (string, error) {
	m, err := s.read()
	if err != nil {
		return "", fmt.Errorf("secret store not available: %w", err)
	}
	v, ok := m[account]
	if !ok {
		return "", fmt.Errorf("no %q secret in %s", account, s.path)
	}
	return v, nil
}

func (s fileSecrets) Set(account, value string) error {
	m, err := s.read()
	if err != nil {
		m = map[string]string{}
	}
	m[account] = value
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return writePrivate(s.path, data)
}
