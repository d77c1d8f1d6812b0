package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/voxkeeper/internal/client/client"
	"github.com/dmitrijs2005/voxkeeper/internal/client/repositories/pending"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachable addresses: nothing listens on port 1
const (
	deadDSN    = "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1"
	deadHealth = "127.0.0.1:1"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	cfg := map[string]any{
		"owner_id":      "owner-1",
		"jwt_secret":    "0123456789abcdef0123",
		"s3_access_key": "test",
		"s3_secret_key": "test",
		"log_level":     "error",
		"log_file":      filepath.Join(dir, "client.log"),
		"work_dir":      dir,
	}
	b, err := json.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(dir, "client.json")
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestRun_StartsOfflineAndQueuesCapture(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "vox.db")

	// minimal ID3 header followed by filler
	audio := append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), bytes.Repeat([]byte{0xFF, 0xFB, 0x90, 0x00}, 256)...)
	capturePath := filepath.Join(dir, "memo.mp3")
	require.NoError(t, os.WriteFile(capturePath, audio, 0o600))

	args := []string{
		"-c", writeConfig(t, dir),
		"-d", dbPath,
		"-r", deadDSN,
		"-a", deadHealth,
	}
	in := strings.NewReader("upload " + capturePath + "\nexit\n")
	var out bytes.Buffer

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, run(ctx, args, in, &out))
	assert.Contains(t, out.String(), "queued for sync")

	db, err := client.InitDatabase(context.Background(), dbPath)
	require.NoError(t, err)
	defer db.Close()

	n, err := pending.NewSQLiteRepository(db).Count(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRun_InvalidConfig(t *testing.T) {
	err := run(context.Background(), []string{"-d", filepath.Join(t.TempDir(), "vox.db")}, strings.NewReader(""), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}
