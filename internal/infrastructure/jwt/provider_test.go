package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vintage-realtime/internal/config"
)

// writeKeys generates an RSA key pair into a temp dir and returns the config
// pointing at it. withPrivate controls whether the private key is written.
func writeKeys(t *testing.T, withPrivate bool) (*config.Config, *rsa.PrivateKey) {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	cfg := &config.Config{
		JWTPrivateKeyPath: filepath.Join(dir, "private.pem"),
		JWTPublicKeyPath:  filepath.Join(dir, "public.pem"),
		JWTExpiry:         time.Hour,
	}
	if withPrivate {
		privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privKey)})
		require.NoError(t, os.WriteFile(cfg.JWTPrivateKeyPath, privPEM, 0600))
	}
	pubBytes, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	require.NoError(t, os.WriteFile(cfg.JWTPublicKeyPath, pubPEM, 0600))
	return cfg, privKey
}

func TestProvider_SignVerify_RoundTrip(t *testing.T) {
	cfg, _ := writeKeys(t, true)
	p, err := NewProvider(cfg)
	require.NoError(t, err)

	tok, err := p.Sign("u1", "SELLER")
	require.NoError(t, err)

	claims, err := p.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "SELLER", claims.Role)
}

func TestProvider_VerifyOnly_WithoutPrivateKey(t *testing.T) {
	cfg, privKey := writeKeys(t, false)
	p, err := NewProvider(cfg)
	require.NoError(t, err)

	_, err = p.Sign("u1", "USER")
	assert.Error(t, err)

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, Claims{
		UserID: "u2",
		Role:   "USER",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	signed, err := tok.SignedString(privKey)
	require.NoError(t, err)

	claims, err := p.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "u2", claims.UserID)
}

func TestProvider_Verify_Rejects(t *testing.T) {
	cfg, privKey := writeKeys(t, true)
	p, err := NewProvider(cfg)
	require.NoError(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodRS256, Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	expiredTok, err := expired.SignedString(privKey)
	require.NoError(t, err)

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodRS256, Claims{UserID: "u1"})
	noExpiryTok, err := noExpiry.SignedString(privKey)
	require.NoError(t, err)

	hmac := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "u1"})
	hmacTok, err := hmac.SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":   "not-a-token",
		"expired":   expiredTok,
		"no expiry": noExpiryTok,
		"hmac":      hmacTok,
	} {
		_, err := p.Verify(tok)
		assert.Error(t, err, name)
	}
}

func TestNewProvider_MissingPublicKey(t *testing.T) {
	_, err := NewProvider(&config.Config{JWTPublicKeyPath: filepath.Join(t.TempDir(), "nope.pem")})
	assert.Error(t, err)
}
