package githubauth

import (
	"crypto/rsa"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"
)

// Credentials identifies the GitHub App installation the service runs as.
// The private key is referenced by file path and never logged.
type Credentials struct {
	AppID          int64  `env:"ORGSENTRY_GITHUB_APP_ID,required"`
	InstallationID int64  `env:"ORGSENTRY_GITHUB_INSTALLATION_ID,required"`
	PrivateKeyFile string `env:"ORGSENTRY_GITHUB_PRIVATE_KEY_FILE,required"`
}

// CredentialsFromEnv reads App credentials from the environment.
func CredentialsFromEnv() (*Credentials, error) {
	var c Credentials
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("githubauth: %w", err)
	}
	return &c, nil
}

func (c *Credentials) parseKey() (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(c.PrivateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("githubauth: read private key %s: %w", c.PrivateKeyFile, err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("githubauth: parse private key: %w", err)
	}
	return key, nil
}
