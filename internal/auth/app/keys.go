package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/teamhub/pkg/cryptox"
	"github.com/aussiebroadwan/teamhub/pkg/jwtx"
)

// InitCodec builds the access token codec from AUTH_JWT_SECRET. The secret
// may be base64 (standard or URL alphabet) or raw text; either way the
// decoded key must hold at least 256 bits or startup fails.
//
// There is one key and no rotation: changing the secret invalidates every
// outstanding access token.
func InitCodec(cfg Config, logger *slog.Logger) (*jwtx.HS256Codec, error) {
	key := cryptox.DecodeSecret(cfg.JWTSecret)

	codec, err := jwtx.NewHS256(key, jwtx.HS256Options{Issuer: cfg.Issuer})
	if err != nil {
		return nil, fmt.Errorf("AUTH_JWT_SECRET: %w", err)
	}

	logger.Info("token codec ready", "alg", "HS256", "key_bits", len(key)*8, "issuer", cfg.Issuer)
	return codec, nil
}
