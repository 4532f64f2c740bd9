package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tour-booker/client"
	"tour-booker/config"
)

func loadPool(t *testing.T, lines string) *client.ProxyPool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proxies.txt")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	pool := client.NewProxyPool()
	_, err := pool.LoadProxies(path)
	require.NoError(t, err)
	return pool
}

func defaultConfig() *config.Config {
	cfg := config.Default()
	return &cfg
}

func TestNewClientSkipsUnusableProxies(t *testing.T) {
	pool := loadPool(t, "http://10.0.0.1:3128\nsocks5://10.0.0.2:1080\nhttps://10.0.0.3:3128\n")

	c, err := newClient(zerolog.Nop(), defaultConfig(), client.NewFingerprintManager(), pool)
	require.NoError(t, err)
	assert.Equal(t, "socks5://10.0.0.2:1080", c.ProxyURL())
	assert.Equal(t, c.ProxyURL(), pool.Sticky(), "the chosen proxy stays sticky")
}

func TestNewClientNoUsableProxy(t *testing.T) {
	pool := loadPool(t, "http://10.0.0.1:3128\n")

	_, err := newClient(zerolog.Nop(), defaultConfig(), client.NewFingerprintManager(), pool)
	assert.ErrorIs(t, err, client.ErrUnsupportedProxy)
}

func TestNewClientDirect(t *testing.T) {
	c, err := newClient(zerolog.Nop(), defaultConfig(), client.NewFingerprintManager(), client.NewProxyPool())
	require.NoError(t, err)
	assert.Empty(t, c.ProxyURL())
}
