package config

// ConfigBackend is the persistent store behind `skillgap config set`.
// Values read from it are overridden by SKILLGAP_* environment variables.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}

// SecretStore holds credentials outside the config backend, keyed by
// account name (see setting.account).
type SecretStore interface {
	Get(account string) (string, error)
	Set(account, value string) error
}

const secretService = "skillgap"
