// Package secrets resolves credentials that should not live in the config
// file, falling back to the OS keyring.
package secrets

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/medboard/medboard/internal/config"
)

const keyringService = "medboard"

// Known keyring entries.
const (
	KeyDiscordToken   = "discord_token"
	KeyOutletPassword = "outlet_password"
)

// Keys lists the entries medboard reads from the keyring.
var Keys = []string{KeyDiscordToken, KeyOutletPassword}

// ErrUnknownKey is returned by Set for names outside Keys.
var ErrUnknownKey = errors.New("secrets: unknown key")

// Get returns the keyring value for key, or "" when none is stored.
func Get(key string) (string, error) {
	val, err := keyring.Get(keyringService, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("keyring get %s: %w", key, err)
	}
	return val, nil
}

// Set stores value under key.
func Set(key, value string) error {
	if !known(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err := keyring.Set(keyringService, key, value); err != nil {
		return fmt.Errorf("keyring set %s: %w", key, err)
	}
	return nil
}

// Fill completes cfg with keyring values for credentials left empty by the
// config file and environment. Keyring failures are logged, not fatal: a
// headless machine without a keyring still runs on env credentials.
func Fill(cfg *config.Config) {
	fill := func(dst *string, key string) {
		if strings.TrimSpace(*dst) != "" {
			return
		}
		val, err := Get(key)
		if err != nil {
			slog.Debug("Keyring unavailable", "key", key, "error", err)
			return
		}
		*dst = val
	}
	fill(&cfg.Discord.Token, KeyDiscordToken)
	fill(&cfg.Outlet.Password, KeyOutletPassword)
}

func known(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}
