package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "docket.log")

	l, closer, err := New("info", path)
	require.NoError(t, err)

	cl := Component(l, "scheduler")
	cl.Info().Str("token", "2025-05-20_AM").Msg("reminder dispatched")
	l.Debug().Msg("filtered out")
	closer()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "scheduler", entry["component"])
	assert.Equal(t, "2025-05-20_AM", entry["token"])
	assert.Contains(t, entry, "time")
}

func TestNew_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docket.log")

	for range 2 {
		l, closer, err := New("", path)
		require.NoError(t, err)
		l.Info().Msg("started")
		closer()
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "started"))
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := New("loud", "")
	assert.Error(t, err)
}
