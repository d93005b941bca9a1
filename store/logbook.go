package store

import (
	"context"
	"fmt"
	"time"

	"github.com/evdnx/voltrail/config"
	"github.com/evdnx/voltrail/logger"
)

// Logbook decorates a Store: log lines are timestamped and appends are
// retried with a fixed backoff. A line that still fails is dropped.
type Logbook struct {
	Store
	Log     logger.Logger
	Retries int
	Backoff time.Duration
	Now     func() time.Time
}

func NewLogbook(s Store, log logger.Logger, cfg config.StoreSettings) *Logbook {
	if log == nil {
		log = logger.Nop()
	}
	retries := cfg.AppendRetries
	if retries < 1 {
		retries = 1
	}
	return &Logbook{Store: s, Log: log, Retries: retries, Backoff: cfg.AppendBackoff, Now: time.Now}
}

// AppendLog never returns an error; the journal is best effort.
func (l *Logbook) AppendLog(ctx context.Context, line string) error {
	stamped := fmt.Sprintf("%s - %s", l.Now().Format("2006-01-02 15:04:05"), line)
	var err error
	for attempt := 1; attempt <= l.Retries; attempt++ {
		if err = l.Store.AppendLog(ctx, stamped); err == nil {
			return nil
		}
		if attempt == l.Retries {
			break
		}
		select {
		case <-ctx.Done():
			l.Log.Debug("journal_append_abandoned", logger.Err(ctx.Err()))
			return nil
		case <-time.After(l.Backoff):
		}
	}
	l.Log.Debug("journal_append_dropped", logger.Int("attempts", l.Retries), logger.Err(err))
	return nil
}
