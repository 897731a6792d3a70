// Package google mirrors subscriptions to a Google Sheets spreadsheet, one
// row per subscription keyed by ID in column A.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"subtrack/internal/core"
	"subtrack/internal/mirror"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var (
	_ mirror.Writer  = (*Client)(nil)
	_ mirror.Deleter = (*Client)(nil)
)

var headerRow = []any{
	"ID", "Name", "Cost", "Currency", "Cycle", "Start Date",
	"Category", "Active", "Archived", "Updated At",
}

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID.
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional: GOOGLE_SHEET_NAME (default "Subscriptions").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Subscriptions"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Upsert writes the subscription row, replacing an existing row with the same
// ID or appending a new one.
func (c *Client) Upsert(ctx context.Context, sub core.Subscription) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	ids, err := c.readIDColumn(ctx)
	if err != nil {
		return "", err
	}

	targetRow := 0
	for i, id := range ids {
		if id == sub.ID {
			targetRow = i + 1 // sheet rows are 1-based
			break
		}
	}
	if targetRow == 0 {
		if len(ids) == 0 {
			if err := c.writeHeader(ctx); err != nil {
				return "", err
			}
			targetRow = 2
		} else {
			targetRow = len(ids) + 1
		}
	}

	rng := fmt.Sprintf("%s!A%d:J%d", c.sheetName, targetRow, targetRow)
	vr := &gsheet.ValueRange{Values: [][]any{{
		sub.ID,
		sub.Name,
		sub.Cost,
		sub.Currency,
		string(sub.Cycle),
		sub.StartDate.Format("2006-01-02"),
		string(sub.Category),
		sub.IsActive,
		sub.IsArchived,
		sub.UpdatedAt.Format("2006-01-02 15:04:05"),
	}}}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update row in sheet %s: %w", c.sheetName, err)
	}
	return rng, nil
}

// Delete clears the row holding the subscription ID. Missing rows are a
// no-op.
func (c *Client) Delete(ctx context.Context, id string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	ids, err := c.readIDColumn(ctx)
	if err != nil {
		return err
	}

	for i, rowID := range ids {
		if rowID != id {
			continue
		}
		rng := fmt.Sprintf("%s!A%d:J%d", c.sheetName, i+1, i+1)
		_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("clear row in sheet %s: %w", c.sheetName, err)
		}
		return nil
	}
	return nil
}

// readIDColumn returns column A as seen by the sheet, index 0 = row 1.
func (c *Client) readIDColumn(ctx context.Context) ([]string, error) {
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read ID column of sheet %s: %w", c.sheetName, err)
	}

	ids := make([]string, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) > 0 {
			ids[i] = strings.TrimSpace(fmt.Sprint(row[0]))
		}
	}
	return ids, nil
}

func (c *Client) writeHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:J1", c.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{headerRow}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header row: %w", err)
	}
	return nil
}
