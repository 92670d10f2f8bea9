package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifyd/notifyd/internal/config"
)

func TestBuildLibsqlDSN(t *testing.T) {
	t.Run("URLUsesRawValue", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://example.turso.io",
			AuthToken: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=token123", dsn)
	})

	t.Run("PathWithFilePrefix", func(t *testing.T) {
		cfg := config.StoreConfig{Path: "file:./notifyd.db"}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "file:./notifyd.db", dsn)
	})

	t.Run("PlainPathCreatesDirectory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "notifyd.db")

		dsn, err := buildLibsqlDSN(config.StoreConfig{Path: path})
		require.NoError(t, err)
		require.Equal(t, "file:"+path, dsn)
		require.DirExists(t, filepath.Dir(path))
	})

	t.Run("PathMissing", func(t *testing.T) {
		_, err := buildLibsqlDSN(config.StoreConfig{})
		require.Error(t, err)
	})

	t.Run("MemoryPath", func(t *testing.T) {
		dsn, err := buildLibsqlDSN(config.StoreConfig{Path: ":memory:"})
		require.NoError(t, err)
		require.Equal(t, ":memory:", dsn)
	})
}

func TestOpen(t *testing.T) {
	_, err := Open(config.StoreConfig{Driver: "mysql"})
	require.Error(t, err)

	_, err = Open(config.StoreConfig{Driver: "postgres"})
	require.Error(t, err)

	s, err := Open(config.StoreConfig{Driver: "postgres", URL: "postgres://user@127.0.0.1:1/db?sslmode=disable&connect_timeout=1"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", s.Driver())
	require.NoError(t, s.Close())
}

func TestPingUnreachablePostgres(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	s, err := Open(config.StoreConfig{
		Driver: "postgres",
		URL:    fmt.Sprintf("postgres://user@%s/db?sslmode=disable&connect_timeout=1", addr),
	})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	err = s.Ping(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPingNilStore(t *testing.T) {
	var s *Store
	assert.ErrorIs(t, s.Ping(context.Background()), ErrUnavailable)
	assert.NoError(t, s.Close())
}

func TestIsConnectivityError(t *testing.T) {
	assert.False(t, IsConnectivityError(nil))
	assert.True(t, IsConnectivityError(driver.ErrBadConn))
	assert.True(t, IsConnectivityError(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.True(t, IsConnectivityError(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}))
	assert.True(t, IsConnectivityError(&pq.Error{Code: "08006"}))
	assert.True(t, IsConnectivityError(&pq.Error{Code: "57P03"}))
	assert.False(t, IsConnectivityError(&pq.Error{Code: "42P01"}))
	assert.False(t, IsConnectivityError(errors.New("syntax error")))
}
