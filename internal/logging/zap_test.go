package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestZapLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewZapJSON(&buf, zapcore.DebugLevel)

	log.With("component", "transcoder").Info(context.Background(), "tier chosen", "bitrate", 16000)
	require.NoError(t, log.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "tier chosen", entry["msg"])
	assert.Equal(t, "transcoder", entry["component"])
	assert.EqualValues(t, 16000, entry["bitrate"])
}

func TestZapLogger_ContextArgs(t *testing.T) {
	var buf bytes.Buffer
	log := NewZapJSON(&buf, zapcore.InfoLevel)

	ctx := ContextWith(context.Background(), "capture_id", "c7")
	log.Warn(ctx, "retrying part", "part", 3)
	require.NoError(t, log.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "c7", entry["capture_id"])
	assert.EqualValues(t, 3, entry["part"])
}

func TestZapLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	log := NewZapJSON(&buf, zapcore.ErrorLevel)

	log.Warn(context.Background(), "dropped")
	assert.Zero(t, buf.Len())

	log.Error(context.Background(), "kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"default text", Options{}, false},
		{"json", Options{Format: "json", Level: "debug"}, false},
		{"zap", Options{Format: "zap", Level: "warn"}, false},
		{"zap bad level", Options{Format: "zap", Level: "loud"}, true},
		{"unknown format", Options{Format: "xml"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, c, err := New(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
			assert.NoError(t, c.Close())
		})
	}
}

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vox.log")

	l, c, err := New(Options{Format: "json", File: path, MaxSizeMB: 1})
	require.NoError(t, err)
	l.Info(context.Background(), "to file")
	require.NoError(t, c.Close())

	assert.FileExists(t, path)
}
