package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_Levels(t *testing.T) {
	defer base.SetLevel(logrus.InfoLevel)

	tests := []struct {
		name      string
		level     string
		expected  logrus.Level
		expectErr bool
	}{
		{"Empty", "", logrus.InfoLevel, false},
		{"Debug", "debug", logrus.DebugLevel, false},
		{"UpperCase", "WARN", logrus.WarnLevel, false},
		{"Invalid", "loud", logrus.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base.SetLevel(logrus.InfoLevel)
			err := Configure(Config{Level: tt.level})
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, base.GetLevel())
		})
	}
}

func TestWithComponent_AddsField(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	WithComponent("stream-client").Info("connected")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "stream-client", line["component"])
	assert.Equal(t, "connected", line["message"])
}

func TestConfigure_File(t *testing.T) {
	defer SetOutput(os.Stdout)

	path := filepath.Join(t.TempDir(), "marketsync.log")
	require.NoError(t, Configure(Config{Level: "info", File: path}))

	WithComponent("test").Info("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
