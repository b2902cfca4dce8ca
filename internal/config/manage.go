package config

import (
	"fmt"
	"strconv"
)

// KeyInfo is one row of `skillgap config show`.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll lists every key with its effective value. Secrets show only
// whether they are set.
func ShowAll(cfg Config) []KeyInfo {
	rows := make([]KeyInfo, 0, len(settings))
	for _, s := range settings {
		v := fmt.Sprint(s.value(cfg))
		if s.secret {
			v = "(unset)"
			if s.value(cfg) != "" {
				v = "(set)"
			}
		}
		rows = append(rows, KeyInfo{Key: s.key, EnvVar: s.env, Value: v})
	}
	return rows
}

// SetKey persists key=value. Secrets go to the platform secret store.
func SetKey(key, value string) error {
	return setKeyWith(newPlatformBackend(), newSecretStore(), key, value)
}

// UnsetKey removes a persisted key so its default applies again.
func UnsetKey(key string) error {
	return unsetKeyWith(newPlatformBackend(), newSecretStore(), key)
}

type secretWriter interface {
	Set(account, value string) error
}

func setKeyWith(b ConfigBackend, sw secretWriter, key, value string) error {
	s, ok := lookup(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	if s.secret {
		return sw.Set(s.account, value)
	}

	// Parse into a scratch Config to validate and normalize the value.
	var scratch Config
	if err := s.parse(&scratch, value); err != nil {
		return err
	}
	switch v := s.value(scratch).(type) {
	case int:
		return b.SetInt(key, v)
	case bool:
		return b.SetString(key, strconv.FormatBool(v))
	case float64:
		return b.SetString(key, strconv.FormatFloat(v, 'f', -1, 64))
	default:
		return b.SetString(key, value)
	}
}

func unsetKeyWith(b ConfigBackend, sw secretWriter, key string) error {
	s, ok := lookup(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	if s.secret {
		return sw.Set(s.account, "")
	}
	return b.Delete(key)
}

// ValidKeys returns every key SetKey accepts, in display order.
func ValidKeys() []string {
	keys := make([]string, len(settings))
	for i, s := range settings {
		keys[i] = s.key
	}
	return keys
}

// IsSecret reports whether key is kept in the secret store.
func IsSecret(key string) bool {
	s, ok := lookup(key)
	return ok && s.secret
}
