// Package nwerr defines the sentinel error kinds shared across nodewatch's
// components. Callers compare against these with errors.Is; call sites wrap
// them with fmt.Errorf("%w: ...", ...) to attach context.
package nwerr

import "errors"

var (
	// ErrConfigParse is returned when a line in the config file cannot be
	// parsed as a node record. Fatal to Monitor.Start.
	ErrConfigParse = errors.New("nodewatch: malformed config record")

	// ErrConfigWrite is returned when appending a record to the config file
	// fails. Surfaced as a 500 from POST /add; does not alter in-memory state
	// for the failing record.
	ErrConfigWrite = errors.New("nodewatch: config append failed")

	// ErrValidation is returned for bad constructor parameters or a bad
	// POST /add payload. No partial effect is applied.
	ErrValidation = errors.New("nodewatch: validation failed")

	// ErrProbe is returned by the probe client on any failure to obtain a
	// valid response from a monitored node. Never surfaced externally —
	// consumed by the failure counter.
	ErrProbe = errors.New("nodewatch: probe failed")

	// ErrReviveSpawn is returned when a revival command fails to spawn.
	// Logged at error level; does not affect the Revived flag — the attempt
	// still counts, preventing retry storms.
	ErrReviveSpawn = errors.New("nodewatch: revival command failed to spawn")

	// ErrDiscovery is returned by ScanForMonitor when no monitor answers in
	// the scan range.
	ErrDiscovery = errors.New("nodewatch: no monitor found")
)
