package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONOutsideLocal(t *testing.T) {
	var buf bytes.Buffer

	logger := newLogger("production", &buf)
	logger.Info().Str("job", "ranking").Msg("done")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ranking", entry["job"])
	assert.Equal(t, "done", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNewLogger_ConsoleLocally(t *testing.T) {
	var buf bytes.Buffer

	logger := newLogger(envLocal, &buf)
	logger.Info().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()))
}
