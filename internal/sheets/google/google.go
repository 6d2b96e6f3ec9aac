// Package google archives calculations in a Google Sheets spreadsheet, one
// sheet per reference year ("2024 Nebenkosten"), one row per tenant.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	gauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "nebenkosten/internal/sheets"
)

// DefaultSheetBase is the sheet name used when GOOGLE_SHEET_NAME is unset.
const DefaultSheetBase = "Nebenkosten"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

var (
	_ ports.CalculationArchiver = (*Client)(nil)
	_ ports.EntryChecker        = (*Client)(nil)
)

// NewFromEnv creates a Sheets client from the environment.
// Required: GOOGLE_SPREADSHEET_ID and credentials (see credentialsJSON).
// Optional: GOOGLE_SHEET_NAME, the sheet base name without year.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	base := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if base == "" {
		base = DefaultSheetBase
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetBase: base}, nil
}

// credentialsJSON reads Google credentials from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_OAUTH_CREDENTIALS_FILE (an authorized
// user file written by cmd/sheets-auth) or GOOGLE_APPLICATION_CREDENTIALS,
// in that order.
func credentialsJSON() ([]byte, error) {
	if raw := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); raw != "" {
		return []byte(raw), nil
	}
	var path string
	for _, key := range []string{"GOOGLE_SERVICE_ACCOUNT_FILE", "GOOGLE_OAUTH_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS"} {
		if path = strings.TrimSpace(os.Getenv(key)); path != "" {
			break
		}
	}
	if path == "" {
		return nil, errors.New("missing Google credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_OAUTH_CREDENTIALS_FILE or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	return data, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	data, err := credentialsJSON()
	if err != nil {
		return nil, err
	}
	creds, err := gauth.CredentialsFromJSON(ctx, data, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentials(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "project", creds.ProjectID)
	return svc, nil
}

// AppendCalculation appends rows below the last row of the year's sheet.
func (c *Client) AppendCalculation(ctx context.Context, year int, rows []ports.CalculationRow) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if len(rows) == 0 {
		return nil
	}
	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = r.Values()
	}

	sheet := c.SheetName(year)
	rng := fmt.Sprintf("%s!A:K", quoteSheet(sheet))
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", sheet, err)
	}
	slog.InfoContext(ctx, "Calculation archived", "sheet", sheet, "rows", len(rows), "entry_id", rows[0].EntryID)
	return nil
}

// HasEntry scans the entry ID column of the year's sheet.
func (c *Client) HasEntry(ctx context.Context, year int, entryID string) (bool, error) {
	if c.svc == nil {
		return false, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:A", quoteSheet(c.SheetName(year)))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("read %s: %w", rng, err)
	}
	return containsID(resp.Values, entryID), nil
}

// SheetName is the year-prefixed sheet the client writes to for year.
func (c *Client) SheetName(year int) string {
	return yearPrefixedName(c.sheetBase, year)
}

func containsID(values [][]any, id string) bool {
	for _, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return true
		}
	}
	return false
}

// quoteSheet quotes a sheet name for A1 notation; names with spaces need it.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
