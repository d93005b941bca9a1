// Package store is the remote configuration and status surface the operator
// drives the bot through. Nothing read from a store is cached: a failed read
// is reported to the caller and no previous value is substituted.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/evdnx/voltrail/config"
)

// ErrStore wraps transport failures of any Store.
var ErrStore = errors.New("configuration store failure")

// Store is read at the start of every cycle and written with status and log
// lines while the cycle runs.
type Store interface {
	ReadConfig(ctx context.Context) (config.Snapshot, error)
	ReadBlacklist(ctx context.Context) (map[string]struct{}, error)
	SetStatus(ctx context.Context, status string) error
	AppendLog(ctx context.Context, line string) error
	ClearLog(ctx context.Context) error
}

// Status values written by the loop.
const (
	StatusRunning = "Running..."
	StatusStopped = "Stopped"
)

// normalizeBlacklist upper-cases entries and drops blanks.
func normalizeBlacklist(entries []string) map[string]struct{} {
	out := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		e = strings.ToUpper(strings.TrimSpace(e))
		if e != "" {
			out[e] = struct{}{}
		}
	}
	return out
}
