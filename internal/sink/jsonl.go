package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JsonlSink appends points to a JSONL file. It exists for local runs and
// tests; the Postgres sink is the production store.
type JsonlSink struct {
	path string
	mu   sync.Mutex
}

func NewJsonlSink(path string) *JsonlSink {
	return &JsonlSink{path: path}
}

// WritePoints appends a batch of points as JSON lines.
func (s *JsonlSink) WritePoints(_ context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, point := range points {
		line, err := json.Marshal(point)
		if err != nil {
			return fmt.Errorf("marshal point: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write point: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}

// QueryLatestBlock scans the file for the highest block_number written to the
// blocks measurement.
func (s *JsonlSink) QueryLatestBlock(_ context.Context) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("open sink file: %w", err)
	}
	defer file.Close()

	var latest uint64
	var found bool

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var point Point
		if err := json.Unmarshal(line, &point); err != nil {
			continue
		}
		if point.Measurement != "blocks" {
			continue
		}
		raw, ok := point.Fields["block_number"]
		if !ok {
			continue
		}
		number, ok := blockNumberField(raw)
		if !ok {
			continue
		}
		if !found || number > latest {
			latest = number
			found = true
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, false, fmt.Errorf("scan sink file: %w", err)
	}

	return latest, found, nil
}

// Reset truncates the file.
func (s *JsonlSink) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove sink file: %w", err)
	}
	return nil
}

func (s *JsonlSink) Close() error {
	return nil
}

// blockNumberField tolerates both the in-memory int64 and the float64 that
// encoding/json produces on read-back.
func blockNumberField(raw interface{}) (uint64, bool) {
	switch v := raw.(type) {
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case uint64:
		return v, true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}
