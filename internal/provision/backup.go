package provision

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/blagoySimandov/proaccount/internal/logger"
)

// BackupRecord is one line of the backup log.
type BackupRecord struct {
	Email     string    `json:"email"`
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
	IsPro     bool      `json:"isPro"`
}

// BackupLog is an append-only JSON-lines file holding emails that could not
// be written to the store. Appends are serialized within the process and
// each record goes out in a single write.
type BackupLog struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewBackupLog(path string) *BackupLog {
	return &BackupLog{
		path: path,
		now:  time.Now,
	}
}

func (l *BackupLog) Append(email, eventType string, isPro bool) error {
	rec := BackupRecord{
		Email:     email,
		EventType: eventType,
		Timestamp: l.now().UTC(),
		IsPro:     isPro,
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal backup record: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open backup log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to write backup log: %w", err)
	}
	return nil
}

// Read returns every well-formed record. A missing file is an empty log;
// malformed lines are skipped.
func (l *BackupLog) Read() ([]BackupRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []BackupRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open backup log: %w", err)
	}
	defer f.Close()

	records := []BackupRecord{}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec BackupRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			logger.Log.Warn().Err(err).Int("line", lineNo).Str("path", l.path).Msg("Skipping malformed backup log line")
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("failed to read backup log: %w", err)
	}
	return records, nil
}
