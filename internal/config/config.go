package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultTokenHeader   = "Authorization"
	defaultHTTPTimeout   = 30 * time.Second
	defaultVaultAuthType = "token"
	defaultVaultTokenKey = "token"
)

type Config struct {
	CatalogHost        string
	CatalogAccessToken string
	TokenHeader        string
	TLSSkipVerify      bool
	CACertFile         string
	HTTPTimeout        time.Duration
	MetricsAddr        string
	Vault              VaultConfig
}

// VaultConfig locates the pre-issued catalog token in Vault.
type VaultConfig struct {
	Address          string
	Namespace        string
	AuthType         string
	Token            string
	AppRoleMountPath string
	AppRoleRoleID    string
	AppRoleSecretID  string
	TokenPath        string
	TokenKey         string
	TLSSkipVerify    bool
	CACertFile       string
}

// Enabled reports whether a Vault lookup was configured.
func (v VaultConfig) Enabled() bool {
	return strings.TrimSpace(v.Address) != "" && strings.TrimSpace(v.TokenPath) != ""
}

type LoadOptions struct {
	RequireHost bool
}

func Load() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireHost: true})
}

func LoadWithOptions(opts LoadOptions) (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		CatalogHost:        strings.TrimSpace(os.Getenv("CATALOG_HOST")),
		CatalogAccessToken: strings.TrimSpace(os.Getenv("CATALOG_ACCESS_TOKEN")),
		TokenHeader:        getenvDefault("CATALOG_TOKEN_HEADER", defaultTokenHeader),
		TLSSkipVerify:      getenvBoolDefault("CATALOG_TLS_SKIP_VERIFY", false),
		CACertFile:         strings.TrimSpace(os.Getenv("CATALOG_CA_CERT_FILE")),
		HTTPTimeout:        defaultHTTPTimeout,
		MetricsAddr:        strings.TrimSpace(os.Getenv("METRICS_ADDR")),
		Vault: VaultConfig{
			Address:          strings.TrimSpace(os.Getenv("VAULT_ADDR")),
			Namespace:        strings.TrimSpace(os.Getenv("VAULT_NAMESPACE")),
			AuthType:         strings.ToLower(getenvDefault("VAULT_AUTH_TYPE", defaultVaultAuthType)),
			Token:            strings.TrimSpace(os.Getenv("VAULT_TOKEN")),
			AppRoleMountPath: strings.TrimSpace(os.Getenv("VAULT_APPROLE_MOUNT")),
			AppRoleRoleID:    strings.TrimSpace(os.Getenv("VAULT_APPROLE_ROLE_ID")),
			AppRoleSecretID:  strings.TrimSpace(os.Getenv("VAULT_APPROLE_SECRET_ID")),
			TokenPath:        strings.Trim(strings.TrimSpace(os.Getenv("CATALOG_TOKEN_VAULT_PATH")), "/"),
			TokenKey:         getenvDefault("CATALOG_TOKEN_VAULT_KEY", defaultVaultTokenKey),
			TLSSkipVerify:    getenvBoolDefault("VAULT_SKIP_VERIFY", false),
			CACertFile:       strings.TrimSpace(os.Getenv("VAULT_CACERT")),
		},
	}

	// A zero timeout leaves the client without a deadline.
	if v := strings.TrimSpace(os.Getenv("CATALOG_HTTP_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return cfg, fmt.Errorf("CATALOG_HTTP_TIMEOUT must be a non-negative duration, got %q", v)
		}
		cfg.HTTPTimeout = d
	}

	if opts.RequireHost && cfg.CatalogHost == "" {
		return cfg, errors.New("CATALOG_HOST is required")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvBoolDefault(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true":
		return true
	case "0", "false":
		return false
	default:
		return def
	}
}
