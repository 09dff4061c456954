package app

import (
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/walletauth/internal/auth/keys"
	"github.com/aussiebroadwan/walletauth/pkg/cryptox"
)

// InitKeys builds the key resolver.
//
// Modes:
//   - secrets file: access secrets and B2B partner keys are read from
//     cfg.SecretsFile. Entries marked encrypted are opened with the master
//     key. The returned *keys.File can be reloaded.
//   - environment: a single access secret from WALLET_AUTH_ACCESS_SECRET.
//     When it is unset a random secret is generated and every token issued
//     before a restart becomes invalid. No B2B keys are available.
func InitKeys(cfg Config, logger *slog.Logger) (keys.Resolver, *keys.File, error) {
	if cfg.SecretsFile != "" {
		var sealer *cryptox.Sealer
		master, err := readTrimmedFile(cfg.MasterKeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read master key: %w", err)
		}
		if len(master) > 0 {
			if sealer, err = cryptox.NewSealer(master); err != nil {
				return nil, nil, err
			}
			logger.Info("master key loaded", "path", cfg.MasterKeyFile)
		}

		f, err := keys.NewFile(cfg.SecretsFile, sealer, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load secrets file: %w", err)
		}
		logger.Info("secrets file loaded", "path", cfg.SecretsFile)
		return f, f, nil
	}

	var secret []byte
	if cfg.AccessSecret != "" {
		raw, err := base64.StdEncoding.DecodeString(cfg.AccessSecret)
		if err != nil {
			return nil, nil, fmt.Errorf("WALLET_AUTH_ACCESS_SECRET is not base64: %w", err)
		}
		secret = raw
	} else {
		tok, err := cryptox.GenerateToken(64)
		if err != nil {
			return nil, nil, err
		}
		secret = []byte(tok)
		logger.Warn("no access secret configured, generated an ephemeral one; tokens will not survive a restart")
	}

	logger.Info("using environment access secret", "kid", cfg.AccessKid)
	return keys.NewStatic(keys.Secret{Kid: cfg.AccessKid, Secret: secret}), nil, nil
}
