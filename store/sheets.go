package store

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/evdnx/voltrail/config"
)

// Sheets keeps configuration, status and the event log in a Google
// spreadsheet, one range per concern.
type Sheets struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	configRange   string
	statusRange   string
	blackRange    string
	logRange      string
}

// NewSheets authenticates with a service account credentials file.
func NewSheets(ctx context.Context, cfg config.StoreSettings, opts ...option.ClientOption) (*Sheets, error) {
	if cfg.CredentialsFile != "" {
		opts = append([]option.ClientOption{
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(sheets.SpreadsheetsScope),
		}, opts...)
	}
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: sheets client: %v", ErrStore, err)
	}
	return &Sheets{
		values:        srv.Spreadsheets.Values,
		spreadsheetID: cfg.SpreadsheetID,
		configRange:   cfg.ConfigRange,
		statusRange:   cfg.StatusRange,
		blackRange:    cfg.BlacklistRange,
		logRange:      cfg.LogRange,
	}, nil
}

func (s *Sheets) get(ctx context.Context, rng string) ([][]interface{}, error) {
	resp, err := s.values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStore, rng, err)
	}
	return resp.Values, nil
}

func (s *Sheets) ReadConfig(ctx context.Context) (config.Snapshot, error) {
	rows, err := s.get(ctx, s.configRange)
	if err != nil {
		return config.Snapshot{}, err
	}
	if len(rows) == 0 {
		return config.Snapshot{}, fmt.Errorf("%w: configuration row %s is empty", config.ErrInvalidConfig, s.configRange)
	}
	return config.ParseRow(cells(rows[0]))
}

func (s *Sheets) ReadBlacklist(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.get(ctx, s.blackRange)
	if err != nil {
		return nil, err
	}
	entries := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 {
			entries = append(entries, fmt.Sprint(row[0]))
		}
	}
	return normalizeBlacklist(entries), nil
}

func (s *Sheets) SetStatus(ctx context.Context, status string) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{{status}}}
	if _, err := s.values.Update(s.spreadsheetID, s.statusRange, vr).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: status: %v", ErrStore, err)
	}
	return nil
}

func (s *Sheets) AppendLog(ctx context.Context, line string) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{{line}}}
	_, err := s.values.Append(s.spreadsheetID, s.logRange, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("%w: append log: %v", ErrStore, err)
	}
	return nil
}

func (s *Sheets) ClearLog(ctx context.Context) error {
	if _, err := s.values.Clear(s.spreadsheetID, s.logRange, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: clear log: %v", ErrStore, err)
	}
	return nil
}

func cells(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = fmt.Sprint(v)
	}
	return out
}
