package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"bridgeScope/internal/model"
)

// JsonlStorage appends message records to a JSONL file. The file is a feed:
// a record written twice appears twice.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

type jsonlLine struct {
	ID     string          `json:"id"`
	Record json.RawMessage `json:"record"`
}

// Put appends one record as a JSON line.
func (s *JsonlStorage) Put(_ context.Context, id string, msg model.Message) error {
	record, err := model.MarshalMessage(msg)
	if err != nil {
		return fmt.Errorf("marshal message %s: %w", id, err)
	}
	line, err := json.Marshal(jsonlLine{ID: id, Record: record})
	if err != nil {
		return fmt.Errorf("marshal line %s: %w", id, err)
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
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write message record: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// ReadJsonl reads back every record of a JSONL message file in order.
func ReadJsonl(path string) (map[string][]model.Message, []string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	records := make(map[string][]model.Message)
	var order []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var line jsonlLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return nil, nil, fmt.Errorf("parse line: %w", err)
		}
		msg, err := model.UnmarshalMessage(line.Record)
		if err != nil {
			return nil, nil, fmt.Errorf("record %s: %w", line.ID, err)
		}
		if _, ok := records[line.ID]; !ok {
			order = append(order, line.ID)
		}
		records[line.ID] = append(records[line.ID], msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, order, nil
}

var _ Sink = (*JsonlStorage)(nil)

// Close is a no-op; the file is opened per write.
func (s *JsonlStorage) Close() error {
	return nil
}
