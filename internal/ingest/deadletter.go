package ingest

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// DeadLetter is an append-only newline-delimited JSON file for events that
// matched no known shape. Each record is flushed as it is written; the file
// is never truncated.
type DeadLetter struct {
	mu   sync.Mutex
	file *os.File
}

func OpenDeadLetter(path string) (*DeadLetter, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &DeadLetter{file: file}, nil
}

type deadLetterRecord struct {
	When time.Time       `json:"when"`
	Raw  json.RawMessage `json:"raw,omitempty"`
	Text string          `json:"text,omitempty"`
}

func (d *DeadLetter) Append(raw []byte) error {
	record := deadLetterRecord{When: time.Now().UTC()}
	if json.Valid(raw) {
		record.Raw = raw
	} else {
		record.Text = string(raw)
	}

	line, err := json.Marshal(record)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.file.Write(append(line, '\n')); err != nil {
		return err
	}
	return d.file.Sync()
}

func (d *DeadLetter) Close() error {
	return d.file.Close()
}
