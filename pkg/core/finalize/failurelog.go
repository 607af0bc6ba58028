package finalize

import (
	"encoding/csv"
	"fmt"
	"os"
)

var failureLogHeader = []string{"TaskID", "URL", "Reason"}

// FailureLog appends failed slots to a CSV that persists across runs.
type FailureLog struct {
	file   *os.File
	writer *csv.Writer
}

// OpenFailureLog opens path for appending and writes the header only when the file
// is new or empty.
func OpenFailureLog(path string) (*FailureLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open failure log %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat failure log %s: %w", path, err)
	}

	l := &FailureLog{file: f, writer: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := l.write(failureLogHeader); err != nil {
			f.Close()
			return nil, err
		}
	}
	return l, nil
}

// Write appends one failure and flushes it to disk.
func (l *FailureLog) Write(taskID, url, reason string) error {
	return l.write([]string{taskID, url, reason})
}

func (l *FailureLog) write(record []string) error {
	if err := l.writer.Write(record); err != nil {
		return err
	}
	l.writer.Flush()
	return l.writer.Error()
}

// Close closes the underlying file.
func (l *FailureLog) Close() error {
	l.writer.Flush()
	return l.file.Close()
}
