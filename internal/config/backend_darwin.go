//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.skillgap.app"

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "skillgap-data"
	}
	return filepath.Join(home, "Library", "Application Support", "skillgap")
}

func apiKeyHint() string {
	return ", or run `skillgap config set llm.api_key <key>` to store it in the login Keychain"
}

func newPlatformBackend() ConfigBackend {
	return defaultsBackend(defaultsDomain)
}

// defaultsBackend reads and writes a UserDefaults domain through the
// defaults(1) tool.
type defaultsBackend string

func (d defaultsBackend) run(args ...string) (string, error) {
	out, err := exec.Command("defaults", append([]string{args[0], string(d)}, args[1:]...)...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

func (d defaultsBackend) GetString(key string) (string, bool, error) {
	out, err := d.run("read", key)
	if err == nil {
		return out, true, nil
	}
	// defaults exits 1 for a missing key.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return "", false, nil
	}
	return "", false, fmt.Errorf("defaults read %s: %w (%s)", key, err, out)
}

func (d defaultsBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := d.GetString(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return i, true, nil
}

func (d defaultsBackend) SetString(key, val string) error {
	_, err := d.run("write", key, "-string", val)
	return err
}

func (d defaultsBackend) SetInt(key string, val int) error {
	_, err := d.run("write", key, "-int", strconv.Itoa(val))
	return err
}

func (d defaultsBackend) Delete(key string) error {
	_, err := d.run("delete", key)
	return err
}

func newSecretStore() SecretStore {
	return keychain{service: secretService}
}

// keychain keeps secrets as generic passwords in the login Keychain.
type keychain struct {
	service string
}

func (k keychain) Get(account string) (string, error) {
	out, err := exec.Command("security", "find-generic-password", "-s", k.service, "-a", account, "-w").Output()
	if err != nil {
		return "", fmt.Errorf("keychain item %s/%s: %w", k.service, account, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (k keychain) Set(account, value string) error {
	out, err := exec.Command("security", "add-generic-password", "-U", "-s", k.service, "-a", account, "-w", value).CombinedOutput()
	if err != nil {
		return fmt.Errorf("writing keychain item %s/%s: %w, output: %s", k.service, account, err, out)
	}
	return nil
}
