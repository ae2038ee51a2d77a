package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/vault/api"
)

// vaultRef is a parsed ${VAULT:path#key} reference.
type vaultRef struct {
	Path string
	Key  string
}

func parseVaultRef(ref string) (vaultRef, error) {
	path, key, ok := strings.Cut(ref, "#")
	if !ok || path == "" || key == "" {
		return vaultRef{}, fmt.Errorf("invalid Vault reference %q: want path#key", ref)
	}
	return vaultRef{Path: path, Key: key}, nil
}

// newVaultClient builds a client from VAULT_ADDR, VAULT_TOKEN and the
// optional VAULT_NAMESPACE.
func newVaultClient() (*api.Client, error) {
	env := map[string]string{}
	for _, name := range []string{"VAULT_ADDR", "VAULT_TOKEN"} {
		v := os.Getenv(name)
		if v == "" {
			return nil, fmt.Errorf("%s is not set", name)
		}
		env[name] = v
	}

	cfg := api.DefaultConfig()
	cfg.Address = env["VAULT_ADDR"]
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating Vault client: %w", err)
	}
	client.SetToken(env["VAULT_TOKEN"])
	if ns := os.Getenv("VAULT_NAMESPACE"); ns != "" {
		client.SetNamespace(ns)
	}
	return client, nil
}

// resolveVault reads one key of a Vault secret. KV v1 and v2 mounts are
// both accepted.
func resolveVault(ref string) (string, error) {
	r, err := parseVaultRef(ref)
	if err != nil {
		return "", err
	}
	client, err := newVaultClient()
	if err != nil {
		return "", err
	}

	secret, err := client.Logical().ReadWithContext(context.Background(), r.Path)
	if err != nil {
		return "", fmt.Errorf("reading Vault secret %s: %w", r.Path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("no Vault secret at %s", r.Path)
	}
	return vaultValue(secret.Data, r)
}

func vaultValue(data map[string]interface{}, r vaultRef) (string, error) {
	if inner, ok := data["data"].(map[string]interface{}); ok {
		data = inner // KV v2
	}
	val, ok := data[r.Key]
	if !ok {
		return "", fmt.Errorf("Vault secret %s has no key %q", r.Path, r.Key)
	}
	switch v := val.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return fmt.Sprint(v), nil
	default:
		return "", fmt.Errorf("Vault secret %s key %q is not a scalar", r.Path, r.Key)
	}
}
