package diaglog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 9, 30, 0, 125*int(time.Millisecond), time.UTC)
}

func TestFormatAndLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelInfo)
	l.now = fixedClock

	l.Debugf("hidden %d", 1)
	l.Infof("sent %s", "a")
	l.Errorf("row %v failed", map[string]string{"valor": "x"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2024-03-01 09:30:00,125 - INFO - sent a", lines[0])
	assert.Equal(t, "2024-03-01 09:30:00,125 - ERROR - row map[valor:x] failed", lines[1])
}

func TestOpenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diag.log")

	first, err := Open(path, LevelError)
	require.NoError(t, err)
	first.Errorf("first")
	require.NoError(t, first.Close())

	second, err := Open(path, LevelError)
	require.NoError(t, err)
	second.Errorf("second")
	require.NoError(t, second.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ERROR - first")
	assert.Contains(t, string(data), "ERROR - second")
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelInfo, ParseLevel("info"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("nonsense"))
}
