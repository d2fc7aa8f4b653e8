package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/open-sspm/catalogctl/internal/config"
	"github.com/open-sspm/catalogctl/internal/secrets"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errNoToken = errors.New("no catalog access token provided (set CATALOG_ACCESS_TOKEN, CATALOG_TOKEN_VAULT_PATH, or use --token-stdin)")

var (
	stdinIsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
	readPassword    = func() ([]byte, error) { return term.ReadPassword(int(os.Stdin.Fd())) }
)

// resolveToken looks up the pre-issued token: an explicit --token-stdin wins,
// then the environment, then Vault, then an interactive prompt.
func resolveToken(ctx context.Context, cmd *cobra.Command, cfg config.Config, fromStdin bool) (string, error) {
	if fromStdin {
		token, err := readTokenLine(cmd.InOrStdin())
		if err != nil {
			return "", err
		}
		if token == "" {
			return "", errors.New("token from stdin is empty")
		}
		return token, nil
	}

	if cfg.CatalogAccessToken != "" {
		return cfg.CatalogAccessToken, nil
	}

	if cfg.Vault.Enabled() {
		vc, err := secrets.NewVaultClient(ctx, secrets.Options{
			Address:          cfg.Vault.Address,
			Namespace:        cfg.Vault.Namespace,
			AuthType:         cfg.Vault.AuthType,
			Token:            cfg.Vault.Token,
			AppRoleMountPath: cfg.Vault.AppRoleMountPath,
			AppRoleRoleID:    cfg.Vault.AppRoleRoleID,
			AppRoleSecretID:  cfg.Vault.AppRoleSecretID,
			TLSSkipVerify:    cfg.Vault.TLSSkipVerify,
			TLSCACertFile:    cfg.Vault.CACertFile,
		})
		if err != nil {
			return "", err
		}
		token, err := vc.ReadToken(ctx, cfg.Vault.TokenPath, cfg.Vault.TokenKey)
		if err != nil {
			return "", fmt.Errorf("resolve catalog token: %w", err)
		}
		return token, nil
	}

	if !stdinIsTerminal() {
		return "", errNoToken
	}
	cmd.PrintErr("Catalog access token: ")
	raw, err := readPassword()
	cmd.PrintErrln()
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", errNoToken
	}
	return token, nil
}

func readTokenLine(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", nil
	}
	return strings.TrimSpace(scanner.Text()), nil
}
