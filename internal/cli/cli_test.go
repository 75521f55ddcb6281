package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/feedpulse/internal/core/domain"
	apperrors "github.com/lueurxax/feedpulse/internal/core/errors"
)

func TestReadSecret_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.txt")
	require.NoError(t, os.WriteFile(path, []byte("  1AbCd==\n"), 0o600))

	secret, err := readSecret(path, strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "1AbCd==", secret)
}

func TestReadSecret_FromStdin(t *testing.T) {
	secret, err := readSecret(stdinPath, strings.NewReader("{\"Version\":1}\n"))
	require.NoError(t, err)
	assert.Equal(t, `{"Version":1}`, secret)
}

func TestReadSecret_Empty(t *testing.T) {
	_, err := readSecret(stdinPath, strings.NewReader(" \n"))
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = readSecret(filepath.Join(t.TempDir(), "missing"), nil)
	require.Error(t, err)
}

func TestImportSession_RejectsUnknownFormatBeforeConnecting(t *testing.T) {
	cmd := newImportSessionCmd()
	cmd.SetIn(strings.NewReader("not a session"))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--channel", "news"})

	err := cmd.Execute()
	require.ErrorIs(t, err, apperrors.ErrUnsupportedSessionFormat)
}

func TestSubscribe_RequiresFlags(t *testing.T) {
	cmd := newSubscribeCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--account", "3"})

	require.ErrorIs(t, cmd.Execute(), apperrors.ErrInvalidInput)
}

func TestTop_RejectsUnknownKind(t *testing.T) {
	cmd := newTopCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--kind", "channel"})

	require.ErrorIs(t, cmd.Execute(), apperrors.ErrInvalidInput)
}

func TestPrintRankings(t *testing.T) {
	var out bytes.Buffer

	indexed := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	err := printRankings(&out, []domain.RankingEntry{
		{EntityKind: domain.EntityTopic, EntityID: 7, Window: "24h", Score: 12.5, Indexed: indexed},
		{EntityKind: domain.EntityTopic, EntityID: 3, Window: "24h", Score: 1.25, Indexed: indexed},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "SCORE")
	assert.Contains(t, lines[1], "12.5000")
	assert.Contains(t, lines[2], "2026-06-01T12:00:00Z")
}
