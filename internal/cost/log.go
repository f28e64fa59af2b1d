package cost

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// LogEntry is one line of the append-only cost log. Field names match the
// format consumed by the reporting tooling downstream.
type LogEntry struct {
	PredictionID              string    `json:"prediction_id"`
	PredictionContext         string    `json:"prediction_context"`
	SearchAPICalls            int       `json:"searchApiCalls"`
	QueryEnhancerInputTokens  int       `json:"queryEnhancerInputTokens"`
	QueryEnhancerOutputTokens int       `json:"queryEnhancerOutputTokens"`
	ResultJudgeInputTokens    int       `json:"resultJudgeInputTokens"`
	ResultJudgeOutputTokens   int       `json:"resultJudgeOutputTokens"`
	TotalInputTokens          int       `json:"totalInputTokens"`
	TotalOutputTokens         int       `json:"totalOutputTokens"`
	Outcome                   string    `json:"outcome"`
	Timestamp                 time.Time `json:"timestamp"`
}

// Logger appends cost log entries to a file, one JSON object per line.
// Appends are serialized under a mutex so concurrent workers never
// interleave partial lines.
type Logger struct {
	mu   sync.Mutex
	path string
}

// NewLogger creates a cost logger writing to path.
func NewLogger(path string) *Logger {
	return &Logger{path: path}
}

// Append writes one entry. Cost logging is best-effort: callers log the
// returned error but never fail a validation over it.
func (l *Logger) Append(e LogEntry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return eris.Wrap(err, "costlog: marshal entry")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrap(err, "costlog: open")
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return eris.Wrap(err, "costlog: write")
	}
	return nil
}

// ReadLog loads all entries from a cost log file. Malformed lines are
// skipped with a warning; a missing file yields an empty slice so a fresh
// deployment starts with zero history.
func ReadLog(path string) ([]LogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "costlog: open")
	}
	defer f.Close()

	var entries []LogEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			zap.L().Warn("costlog: skipping malformed line", zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, eris.Wrap(err, "costlog: scan")
	}
	return entries, nil
}
