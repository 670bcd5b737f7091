// Package report mirrors the case table into a Google Sheets workbook the
// lab's planning team works from, on a cron schedule.
package report

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jilsnshah/alignflow/internal/config"
	"github.com/jilsnshah/alignflow/internal/models"
	"github.com/jilsnshah/alignflow/internal/schedule"
	"github.com/jilsnshah/alignflow/internal/store"
	"github.com/robfig/cron/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const casesRange = "Cases!A1"

// SheetWriter is the slice of the Sheets API the syncer needs.
type SheetWriter interface {
	Update(ctx context.Context, spreadsheetID, writeRange string, rows [][]interface{}) error
}

// Syncer periodically writes the full case list to a spreadsheet.
type Syncer struct {
	cases         store.CaseStore
	writer        SheetWriter
	spreadsheetID string
}

// NewSyncer wires a case store to a sheet writer.
func NewSyncer(cases store.CaseStore, writer SheetWriter, spreadsheetID string) *Syncer {
	return &Syncer{cases: cases, writer: writer, spreadsheetID: spreadsheetID}
}

// Sync writes the current case table to the Cases sheet.
func (s *Syncer) Sync(ctx context.Context) error {
	cases, err := s.cases.ListCases(ctx)
	if err != nil {
		return fmt.Errorf("report: load cases: %w", err)
	}

	rows := Rows(cases)
	if err := s.writer.Update(ctx, s.spreadsheetID, casesRange, rows); err != nil {
		return fmt.Errorf("report: write sheet: %w", err)
	}
	log.Printf("report: synced %d cases to spreadsheet", len(cases))
	return nil
}

// Run syncs on the given 5-field cron expression until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context, cronExpr string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("report: parse cron %q: %w", cronExpr, err)
	}

	for {
		next := sched.Next(time.Now())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}
		if err := s.Sync(ctx); err != nil {
			log.Printf("report: sync failed: %v", err)
		}
	}
}

// Rows flattens cases into spreadsheet rows, header first.
func Rows(cases []models.Case) [][]interface{} {
	rows := [][]interface{}{{
		"Case ID", "Patient", "Dentist", "Status", "Delivery Status",
		"Priority", "Created", "Updated",
	}}
	for _, c := range cases {
		rows = append(rows, []interface{}{
			c.ID, c.PatientName, c.DentistName, c.Status, c.DeliveryStatus,
			c.Priority, c.CreatedAt.Format(time.RFC3339), c.UpdatedAt.Format(time.RFC3339),
		})
	}
	return rows
}

// GoogleSheets implements SheetWriter on the Sheets API.
type GoogleSheets struct {
	svc *sheets.Service
}

// NewGoogleSheets authorizes against Sheets with the same OAuth client and
// token the calendar uses.
func NewGoogleSheets(ctx context.Context, cal config.CalendarConfig) (*GoogleSheets, error) {
	client, err := schedule.AuthorizedClient(ctx, cal.CredentialsFile, cal.TokenFile, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("report: authorize sheets: %w", err)
	}
	svc, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("report: create sheets service: %w", err)
	}
	return &GoogleSheets{svc: svc}, nil
}

func (g *GoogleSheets) Update(ctx context.Context, spreadsheetID, writeRange string, rows [][]interface{}) error {
	vr := &sheets.ValueRange{Values: rows}
	_, err := g.svc.Spreadsheets.Values.
		Update(spreadsheetID, writeRange, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("report: update %s: %w", writeRange, err)
	}
	return nil
}
