package store

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"callscreen/internal/errors"
)

var transcriptHeader = []string{"CallSid", "DurationSec", "Conversation"}

// TranscriptRecord is one finished call.
type TranscriptRecord struct {
	CallID       string
	Duration     time.Duration
	Conversation string
}

// TranscriptLog appends call records to a CSV file, writing the header
// when the file is first created.
type TranscriptLog struct {
	path string
	mu   sync.Mutex
}

// NewTranscriptLog returns a log writing to path. The file is created on
// the first append.
func NewTranscriptLog(path string) *TranscriptLog {
	return &TranscriptLog{path: path}
}

// Path returns the CSV file path.
func (l *TranscriptLog) Path() string {
	return l.path
}

// Append writes one record. Durations are stored in seconds rounded to one
// decimal.
func (l *TranscriptLog) Append(rec TranscriptRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.NewIOError(errors.ErrCodeTranscriptWriteFailed, "creating transcript directory", err)
		}
	}

	_, statErr := os.Stat(l.path)
	newFile := os.IsNotExist(statErr)

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeTranscriptWriteFailed,
			fmt.Sprintf("opening transcript log %s", l.path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if newFile {
		if err := w.Write(transcriptHeader); err != nil {
			return errors.NewIOError(errors.ErrCodeTranscriptWriteFailed, "writing transcript header", err)
		}
	}
	seconds := math.Round(rec.Duration.Seconds()*10) / 10
	if err := w.Write([]string{rec.CallID, strconv.FormatFloat(seconds, 'f', 1, 64), rec.Conversation}); err != nil {
		return errors.NewIOError(errors.ErrCodeTranscriptWriteFailed, "writing transcript record", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.NewIOError(errors.ErrCodeTranscriptWriteFailed, "flushing transcript log", err)
	}
	return nil
}
