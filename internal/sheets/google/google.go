// Package google adapts the ledger and budget store ports onto a Google
// Spreadsheet: one tab per month partition, one "Budget <year>" tab per year.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"kharcha/internal/budget"
	"kharcha/internal/classify"
	"kharcha/internal/core"
	"kharcha/internal/ledger"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64 // tab title -> sheetId
}

// Ensure interface conformance
var (
	_ ledger.Store = (*Client)(nil)
	_ budget.Store = (*Client)(nil)
)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID.
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, spreadsheetID), nil
}

func New(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetIDs:      make(map[string]int64),
	}
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

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// --- ledger.Store ---

func (c *Client) ListPartitions(ctx context.Context) ([]string, error) {
	return c.refreshSheetIDs(ctx)
}

func (c *Client) CreatePartition(ctx context.Context, title string) error {
	return c.addSheet(ctx, title)
}

func (c *Client) ReadHeader(ctx context.Context, title string) ([]string, error) {
	rng := fmt.Sprintf("'%s'!1:1", title)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read header of %q: %w", title, err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	return toStrings(resp.Values[0]), nil
}

func (c *Client) WriteHeader(ctx context.Context, title string, header []string) error {
	rng := fmt.Sprintf("'%s'!A1", title)
	vr := &gsheet.ValueRange{Values: [][]any{toAnys(header)}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header of %q: %w", title, err)
	}
	return nil
}

func (c *Client) FormatHeader(ctx context.Context, title string) error {
	sheetID, err := c.sheetID(ctx, title)
	if err != nil {
		return err
	}
	req := &gsheet.Request{
		RepeatCell: &gsheet.RepeatCellRequest{
			Range: &gsheet.GridRange{
				SheetId:       sheetID,
				StartRowIndex: 0,
				EndRowIndex:   1,
			},
			Cell: &gsheet.CellData{
				UserEnteredFormat: &gsheet.CellFormat{
					TextFormat:          &gsheet.TextFormat{Bold: true},
					HorizontalAlignment: "CENTER",
				},
			},
			Fields: "userEnteredFormat(textFormat,horizontalAlignment)",
		},
	}
	return c.batchUpdate(ctx, title, req)
}

func (c *Client) FreezeRows(ctx context.Context, title string, n int) error {
	sheetID, err := c.sheetID(ctx, title)
	if err != nil {
		return err
	}
	req := &gsheet.Request{
		UpdateSheetProperties: &gsheet.UpdateSheetPropertiesRequest{
			Properties: &gsheet.SheetProperties{
				SheetId: sheetID,
				GridProperties: &gsheet.GridProperties{
					FrozenRowCount: int64(n),
				},
			},
			Fields: "gridProperties.frozenRowCount",
		},
	}
	return c.batchUpdate(ctx, title, req)
}

func (c *Client) AppendRow(ctx context.Context, title string, row []string) error {
	rng := fmt.Sprintf("'%s'!A:E", title)
	vr := &gsheet.ValueRange{Values: [][]any{toAnys(row)}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append row to %q: %w", title, err)
	}
	return nil
}

func (c *Client) ReadRows(ctx context.Context, title string) ([][]string, error) {
	rng := fmt.Sprintf("'%s'!A:E", title)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read rows of %q: %w", title, err)
	}
	out := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		out = append(out, toStrings(row))
	}
	return out, nil
}

func (c *Client) UpdateRow(ctx context.Context, title string, index int, row []string) error {
	rng := fmt.Sprintf("'%s'!A%d:E%d", title, index, index)
	vr := &gsheet.ValueRange{Values: [][]any{toAnys(row)}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update row %d of %q: %w", index, title, err)
	}
	return nil
}

func (c *Client) DeleteRow(ctx context.Context, title string, index int) error {
	sheetID, err := c.sheetID(ctx, title)
	if err != nil {
		return err
	}
	req := &gsheet.Request{
		DeleteDimension: &gsheet.DeleteDimensionRequest{
			Range: &gsheet.DimensionRange{
				SheetId:    sheetID,
				Dimension:  "ROWS",
				StartIndex: int64(index - 1), // API row indexes are 0-based
				EndIndex:   int64(index),
			},
		},
	}
	return c.batchUpdate(ctx, title, req)
}

// --- budget.Store ---

func budgetTitle(year int) string {
	return fmt.Sprintf("Budget %d", year)
}

// EnsureYear creates the year's budget tab with its category header and fixed
// target row, freezing both. Idempotent: an existing tab is left untouched.
func (c *Client) EnsureYear(ctx context.Context, year int) error {
	title := budgetTitle(year)
	titles, err := c.refreshSheetIDs(ctx)
	if err != nil {
		return err
	}
	for _, t := range titles {
		if t == title {
			return nil
		}
	}
	if err := c.addSheet(ctx, title); err != nil {
		return err
	}

	header := append([]any{"Month"}, toAnys(classify.BudgetCategories())...)
	target := []any{"Target"}
	for _, t := range classify.DefaultTargets {
		target = append(target, core.FormatCents(t.Cents))
	}
	vr := &gsheet.ValueRange{Values: [][]any{header, target}}
	rng := fmt.Sprintf("'%s'!A1", title)
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write budget header for %d: %w", year, err)
	}
	if err := c.FormatHeader(ctx, title); err != nil {
		return err
	}
	if err := c.FreezeRows(ctx, title, 2); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Provisioned budget sheet", "year", year)
	return nil
}

func (c *Client) Cell(ctx context.Context, year int, month time.Month, category string) (int64, bool, error) {
	title := budgetTitle(year)
	col, ok := categoryColumn(category)
	if !ok {
		return 0, false, fmt.Errorf("category %q has no budget column", category)
	}
	row, err := c.monthRow(ctx, title, month)
	if err != nil {
		return 0, false, err
	}
	if row == 0 {
		return 0, false, nil
	}
	rng := fmt.Sprintf("'%s'!%s%d", title, col, row)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("read budget cell %s: %w", rng, err)
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return 0, false, nil
	}
	raw := strings.TrimSpace(fmt.Sprint(resp.Values[0][0]))
	if raw == "" {
		return 0, false, nil
	}
	cents, err := parseCellCents(raw)
	if err != nil {
		// Treat unreadable cells as empty rather than failing the write path.
		slog.WarnContext(ctx, "Unparseable budget cell treated as zero", "cell", rng, "value", raw)
		return 0, false, nil
	}
	return cents, true, nil
}

func (c *Client) SetCell(ctx context.Context, year int, month time.Month, category string, cents int64) error {
	title := budgetTitle(year)
	col, ok := categoryColumn(category)
	if !ok {
		return fmt.Errorf("category %q has no budget column", category)
	}
	row, err := c.monthRow(ctx, title, month)
	if err != nil {
		return err
	}
	if row == 0 {
		row, err = c.appendMonthRow(ctx, title, month)
		if err != nil {
			return err
		}
	}
	rng := fmt.Sprintf("'%s'!%s%d", title, col, row)
	vr := &gsheet.ValueRange{Values: [][]any{{core.FormatCents(cents)}}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write budget cell %s: %w", rng, err)
	}
	return nil
}

func (c *Client) Targets(ctx context.Context, year int) (map[string]int64, error) {
	title := budgetTitle(year)
	rng := fmt.Sprintf("'%s'!A2:%s2", title, columnLetter(len(classify.DefaultTargets)))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read budget targets for %d: %w", year, err)
	}
	out := make(map[string]int64)
	if len(resp.Values) == 0 {
		return out, nil
	}
	row := toStrings(resp.Values[0])
	for i, category := range classify.BudgetCategories() {
		idx := i + 1 // column A is the Month label
		if idx >= len(row) {
			break
		}
		cents, err := parseCellCents(row[idx])
		if err != nil {
			continue
		}
		out[category] = cents
	}
	return out, nil
}

// monthRow returns the 1-based row holding the month's totals, or 0 when the
// month has no row yet.
func (c *Client) monthRow(ctx context.Context, title string, month time.Month) (int, error) {
	rng := fmt.Sprintf("'%s'!A:A", title)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("scan month column of %q: %w", title, err)
	}
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(fmt.Sprint(row[0])), month.String()) {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (c *Client) appendMonthRow(ctx context.Context, title string, month time.Month) (int, error) {
	rng := fmt.Sprintf("'%s'!A:A", title)
	vr := &gsheet.ValueRange{Values: [][]any{{month.String()}}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("append month row to %q: %w", title, err)
	}
	// UpdatedRange looks like "'Budget 2025'!A5".
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		if row, ok := rowFromRange(resp.Updates.UpdatedRange); ok {
			return row, nil
		}
	}
	return c.monthRow(ctx, title, month)
}

// --- sheet plumbing ---

func (c *Client) addSheet(ctx context.Context, title string) error {
	req := &gsheet.Request{
		AddSheet: &gsheet.AddSheetRequest{
			Properties: &gsheet.SheetProperties{Title: title},
		},
	}
	_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{req},
	}).Context(ctx).Do()
	if err != nil {
		// Concurrent provisioning can lose the race; an existing tab is fine.
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return fmt.Errorf("add sheet %q: %w", title, err)
	}
	c.mu.Lock()
	delete(c.sheetIDs, title)
	c.mu.Unlock()
	return nil
}

func (c *Client) batchUpdate(ctx context.Context, title string, reqs ...*gsheet.Request) error {
	_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: reqs,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("batch update %q: %w", title, err)
	}
	return nil
}

func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	c.mu.Lock()
	id, ok := c.sheetIDs[title]
	c.mu.Unlock()
	if ok {
		return id, nil
	}
	if _, err := c.refreshSheetIDs(ctx); err != nil {
		return 0, err
	}
	c.mu.Lock()
	id, ok = c.sheetIDs[title]
	c.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("sheet %q not found", title)
	}
	return id, nil
}

// refreshSheetIDs reloads the tab title -> sheetId map and returns the titles
// in spreadsheet order.
func (c *Client) refreshSheetIDs(ctx context.Context) ([]string, error) {
	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties(sheetId,title)").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet: %w", err)
	}
	titles := make([]string, 0, len(resp.Sheets))
	c.mu.Lock()
	for _, s := range resp.Sheets {
		if s.Properties == nil {
			continue
		}
		c.sheetIDs[s.Properties.Title] = s.Properties.SheetId
		titles = append(titles, s.Properties.Title)
	}
	c.mu.Unlock()
	return titles, nil
}

// parseCellCents reads a stored aggregate value. Unlike message amounts,
// aggregate cells may legitimately hold zero.
func parseCellCents(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "0" || raw == "0.0" || raw == "0.00" {
		return 0, nil
	}
	return core.ParseAmountToCents(raw)
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func toAnys(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// categoryColumn maps a budget category to its spreadsheet column letter.
// Column A holds the month label, so the first category lands in B.
func categoryColumn(category string) (string, bool) {
	for i, c := range classify.BudgetCategories() {
		if c == category {
			return columnLetter(i + 1), true
		}
	}
	return "", false
}

// columnLetter converts a 0-based column index to A1 notation.
func columnLetter(i int) string {
	letters := ""
	for i >= 0 {
		letters = string(rune('A'+i%26)) + letters
		i = i/26 - 1
	}
	return letters
}

// rowFromRange extracts the trailing row number of an A1 range like
// "'Budget 2025'!A5" or "'Budget 2025'!A5:M5".
func rowFromRange(rng string) (int, bool) {
	bang := strings.LastIndexByte(rng, '!')
	if bang < 0 {
		return 0, false
	}
	cell := rng[bang+1:]
	if colon := strings.IndexByte(cell, ':'); colon >= 0 {
		cell = cell[:colon]
	}
	row := 0
	for _, r := range cell {
		if r >= '0' && r <= '9' {
			row = row*10 + int(r-'0')
		}
	}
	return row, row > 0
}
