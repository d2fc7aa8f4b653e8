// Package secrets resolves the pre-issued catalog access token from Vault.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
	"github.com/open-sspm/catalogctl/internal/transport"
)

const (
	vaultAuthTypeToken   = "token"
	vaultAuthTypeAppRole = "approle"

	defaultTokenKey = "token"
)

// ErrTokenNotFound is returned when the secret or its token field is missing.
var ErrTokenNotFound = errors.New("catalog token not found in vault")

type Options struct {
	Address          string
	Namespace        string
	AuthType         string
	Token            string
	AppRoleMountPath string
	AppRoleRoleID    string
	AppRoleSecretID  string
	TLSSkipVerify    bool
	TLSCACertPEM     string
	TLSCACertFile    string
}

type VaultClient struct {
	client      *vaultapi.Client
	namespace   string
	addressHost string
}

func NewVaultClient(ctx context.Context, opts Options) (*VaultClient, error) {
	address := strings.TrimSpace(opts.Address)
	if address == "" {
		return nil, errors.New("vault address is required")
	}
	authType := strings.ToLower(strings.TrimSpace(opts.AuthType))
	if authType == "" {
		authType = vaultAuthTypeToken
	}

	rt, err := transport.NewTransport(transport.Options{
		TLSSkipVerify: opts.TLSSkipVerify,
		CACertPEM:     opts.TLSCACertPEM,
		CACertFile:    opts.TLSCACertFile,
	})
	if err != nil {
		return nil, fmt.Errorf("vault TLS setup: %w", err)
	}
	cfg := vaultapi.DefaultConfig()
	cfg.Address = address
	cfg.HttpClient = &http.Client{
		Timeout:   30 * time.Second,
		Transport: rt,
	}
	addressHost := ""
	if parsed, err := neturl.Parse(address); err == nil {
		addressHost = strings.ToLower(strings.TrimSpace(parsed.Hostname()))
	}

	client, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client setup: %w", err)
	}
	namespace := strings.TrimSpace(opts.Namespace)
	if namespace != "" {
		client.SetNamespace(namespace)
	}

	switch authType {
	case vaultAuthTypeToken:
		token := strings.TrimSpace(opts.Token)
		if token == "" {
			return nil, errors.New("vault token is required")
		}
		client.SetToken(token)
	case vaultAuthTypeAppRole:
		roleID := strings.TrimSpace(opts.AppRoleRoleID)
		secretID := strings.TrimSpace(opts.AppRoleSecretID)
		mountPath := strings.Trim(strings.TrimSpace(opts.AppRoleMountPath), "/")
		if mountPath == "" {
			mountPath = "approle"
		}
		if roleID == "" {
			return nil, errors.New("vault AppRole role ID is required")
		}
		if secretID == "" {
			return nil, errors.New("vault AppRole secret ID is required")
		}
		// The login response must not reuse a token picked up from the environment.
		client.ClearToken()
		loginPath := "auth/" + mountPath + "/login"
		secret, err := client.Logical().WriteWithContext(ctx, loginPath, map[string]any{
			"role_id":   roleID,
			"secret_id": secretID,
		})
		if err != nil {
			return nil, fmt.Errorf("vault approle login at %s: %w", loginPath, err)
		}
		if secret == nil || secret.Auth == nil || strings.TrimSpace(secret.Auth.ClientToken) == "" {
			return nil, errors.New("vault approle login succeeded without client token")
		}
		client.SetToken(secret.Auth.ClientToken)
	default:
		return nil, errors.New("vault auth type is invalid")
	}

	return &VaultClient{
		client:      client,
		namespace:   namespace,
		addressHost: addressHost,
	}, nil
}

// ReadToken reads key from the secret at path. Both KV v1 and KV v2 layouts
// are accepted; for v2 the path must include the "data/" segment.
func (c *VaultClient) ReadToken(ctx context.Context, path, key string) (string, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return "", errors.New("vault secret path is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = defaultTokenKey
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("vault read %s: %w", path, c.withNamespaceHint(err))
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: %s", ErrTokenNotFound, path)
	}

	data := secret.Data
	if inner, ok := data["data"].(map[string]any); ok {
		if _, hasMeta := data["metadata"]; hasMeta {
			data = inner
		}
	}
	raw, ok := data[key]
	if !ok {
		return "", fmt.Errorf("%w: %s has no %q field", ErrTokenNotFound, path, key)
	}
	token, ok := raw.(string)
	if !ok || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: %s field %q is empty", ErrTokenNotFound, path, key)
	}
	return strings.TrimSpace(token), nil
}

func (c *VaultClient) withNamespaceHint(err error) error {
	if err == nil {
		return nil
	}
	if strings.TrimSpace(c.namespace) != "" {
		return err
	}
	if !strings.HasSuffix(c.addressHost, ".hashicorp.cloud") {
		return err
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "permission denied") && !strings.Contains(msg, "403") {
		return err
	}
	return fmt.Errorf("%w (tip: set VAULT_NAMESPACE to \"admin\" for HCP Vault Dedicated)", err)
}
