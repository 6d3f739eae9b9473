package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(WARN)
	t.Cleanup(func() {
		SetLevel(INFO)
		SetOutput(os.Stderr)
	})

	Info("dropped", "k", "v")
	Warn("kept", "rows", 5, "api_token", "abcdefghij")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]string
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "5", entry["rows"])
	assert.Equal(t, "abc****hij", entry["api_token"])
}

func TestRedactsOnlySecretKeys(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(DEBUG)
	t.Cleanup(func() {
		SetLevel(INFO)
		SetOutput(os.Stderr)
	})

	Debug("polishing insights", "prompt_tokens", 187, "key", "insighto:abc", "openrouter_api_key", "sk-or-123456789", "password", "hunter2")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "187", entry["prompt_tokens"])
	assert.Equal(t, "insighto:abc", entry["key"])
	assert.Equal(t, "sk-****789", entry["openrouter_api_key"])
	assert.Equal(t, "hun****er2", entry["password"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("DEBUG"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
}
