// Package vault stores the Hugging Face Hub token that the daemon
// exports as HUGGING_FACE_HUB_TOKEN for a colocated inference sidecar
// (gated model repos).
package vault

import (
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const serviceName = "nmtgw"
const hfTokenAccount = "hf-hub-token"

// Vault provides secure storage for the Hugging Face Hub token using
// the OS keychain, with fallback to an environment variable.
type Vault struct{}

// New creates a new Vault instance.
func New() *Vault {
	return &Vault{}
}

// SetHFToken stores the Hugging Face Hub token in the OS keychain.
func (v *Vault) SetHFToken(token string) error {
	return keyring.Set(serviceName, hfTokenAccount, token)
}

// GetHFToken retrieves the Hugging Face Hub token. It first checks the
// OS keychain, then falls back to the NMTGW_HF_TOKEN environment
// variable. An empty, non-error result means no token is stored.
func (v *Vault) GetHFToken() (string, error) {
	secret, err := keyring.Get(serviceName, hfTokenAccount)
	if err == nil && secret != "" {
		return secret, nil
	}

	if val := os.Getenv("NMTGW_HF_TOKEN"); val != "" {
		return val, nil
	}

	return "", nil
}

// DeleteHFToken removes the stored token from the OS keychain.
func (v *Vault) DeleteHFToken() error {
	return keyring.Delete(serviceName, hfTokenAccount)
}

// ResolveKeyRef parses a key reference and retrieves the corresponding
// secret. Supported formats:
//   - "keyring://nmtgw/hf-hub-token" (preferred)
//   - "env:VARIABLE_NAME" (environment variable)
//   - "file:///path/to/token" (plain-text file)
func (v *Vault) ResolveKeyRef(keyRef string) (string, error) {
	if strings.HasPrefix(keyRef, "keyring://") {
		path := strings.TrimPrefix(keyRef, "keyring://")
		parts := strings.SplitN(path, "/", 2)
		if len(parts) != 2 || parts[0] != serviceName || parts[1] == "" {
			return "", fmt.Errorf("invalid key reference format: %q (expected \"keyring://nmtgw/<account>\")", keyRef)
		}
		secret, err := keyring.Get(serviceName, parts[1])
		if err != nil {
			return "", fmt.Errorf("keyring lookup for %q failed: %w", parts[1], err)
		}
		return secret, nil
	}

	if strings.HasPrefix(keyRef, "env:") {
		envVar := strings.TrimPrefix(keyRef, "env:")
		if val := os.Getenv(envVar); val != "" {
			return val, nil
		}
		return "", fmt.Errorf("environment variable %q is not set", envVar)
	}

	if strings.HasPrefix(keyRef, "file://") {
		filePath := strings.TrimPrefix(keyRef, "file://")
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("reading key file %q: %w", filePath, err)
		}
		token := strings.TrimSpace(string(data))
		if token == "" {
			return "", fmt.Errorf("key file %q is empty", filePath)
		}
		return token, nil
	}

	return "", fmt.Errorf("invalid key reference format: %q (expected \"keyring://nmtgw/<account>\", \"env:VARIABLE_NAME\", or \"file:///path/to/token\")", keyRef)
}
