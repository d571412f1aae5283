package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptLogAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "call_logs.csv")
	log := NewTranscriptLog(path)

	require.NoError(t, log.Append(TranscriptRecord{
		CallID:       "CA1",
		Duration:     42*time.Second + 260*time.Millisecond,
		Conversation: "CANDIDATE: hi\nINTERVIEWER: hello, \"welcome\"",
	}))
	require.NoError(t, log.Append(TranscriptRecord{CallID: "CA2", Duration: 3 * time.Second}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"CallSid", "DurationSec", "Conversation"}, rows[0])
	assert.Equal(t, []string{"CA1", "42.3", "CANDIDATE: hi\nINTERVIEWER: hello, \"welcome\""}, rows[1])
	assert.Equal(t, []string{"CA2", "3.0", ""}, rows[2])
}
