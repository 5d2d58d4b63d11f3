// Package appid resolves the application identity used for the CLI name,
// environment prefix and config directory.
package appid

import (
	"context"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/appidentity"
)

// Built-in identity values.
const (
	Vendor      = "iplens"
	BinaryName  = "iplens"
	EnvPrefix   = "IPLENS_"
	ConfigName  = "iplens"
	Description = "IP reputation checks and per-client admission control"
)

// Default returns the built-in identity.
func Default() *appidentity.Identity {
	return &appidentity.Identity{
		Vendor:      Vendor,
		BinaryName:  BinaryName,
		EnvPrefix:   EnvPrefix,
		ConfigName:  ConfigName,
		Description: Description,
	}
}

// Get returns the identity from a .fulmen/app.yaml when one is discovered,
// otherwise the built-in identity. An explicit FULMEN_APP_IDENTITY_PATH is
// authoritative and its errors are returned.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	identity, err := appidentity.Get(ctx)
	if err == nil && identity != nil {
		return identity, nil
	}
	if strings.TrimSpace(os.Getenv(appidentity.EnvIdentityPath)) != "" {
		return nil, err
	}
	return Default(), nil
}
