// Package configstore reads and durably extends the monitor's line-delimited
// JSON configuration file. Each line is one node record, in insertion order;
// the file is append-only — the core never rewrites or deletes a line.
package configstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/nodewatch/nodewatch/internal/nwerr"
)

// Record is the on-disk (and POST /add request/response) shape of a
// monitored node, before it becomes a record.Node with failure state.
type Record struct {
	Address    string `json:"address"`
	ReviveCmd  string `json:"reviveCmd"`
	ReviveArgs string `json:"reviveArgs"`
}

// Validate checks the record's fields: all three are required, and Address
// must parse as host:port. Applied both to POST /add payloads and to records
// replayed from the config file at startup.
func (r Record) Validate() error {
	if r.Address == "" {
		return fmt.Errorf("%w: address is required", nwerr.ErrValidation)
	}
	if _, _, err := net.SplitHostPort(r.Address); err != nil {
		return fmt.Errorf("%w: address %q is not a valid host:port: %v", nwerr.ErrValidation, r.Address, err)
	}
	if r.ReviveCmd == "" {
		return fmt.Errorf("%w: reviveCmd is required", nwerr.ErrValidation)
	}
	if r.ReviveArgs == "" {
		return fmt.Errorf("%w: reviveArgs is required", nwerr.ErrValidation)
	}
	return nil
}

// Store serializes appends to a single config file path: a mutex (rather
// than relying on O_APPEND alone) lets only one Append write at a time. The
// mutex covers the file write only; a caller's in-memory registration after
// Append returns is not ordered by it, so concurrent POST /add requests may
// register their nodes in a different order than their lines were written.
type Store struct {
	path string
	mu   sync.Mutex
}

// New creates a Store bound to path. The file is not required to exist yet
// — Append will create it; Load requires it to exist (even if empty), per
// the monitor's startup contract.
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads every non-empty line of the config file and parses it as a
// Record, preserving file order. A malformed line fails the whole load —
// the caller (Monitor.Start) treats this as fatal.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %s", nwerr.ErrConfigParse, path, err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	// Config lines carry small JSON objects; the default 64KiB token limit
	// is already generous, left at its default deliberately.
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %s", nwerr.ErrConfigParse, path, lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %s", nwerr.ErrConfigParse, path, err)
	}
	return records, nil
}

// Append serializes rec to one JSON line and appends it to the config file,
// opening in append mode and closing before returning so the write is
// durable by the time Append returns successfully. Callers must not extend
// their in-memory record set until Append returns nil.
func (s *Store) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: marshal record: %s", nwerr.ErrConfigWrite, err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %s", nwerr.ErrConfigWrite, s.path, err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("%w: write %s: %s", nwerr.ErrConfigWrite, s.path, err)
	}
	return nil
}

