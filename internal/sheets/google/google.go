package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budget/internal/cache"
	"budget/internal/log"
	ports "budget/internal/sheets"
)

const (
	DefaultSheetName   = "Summary"
	defaultRowCacheTTL = 10 * time.Minute
	lastColumn         = "J"
)

// Options configure a Sheets client.
type Options struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsJSON takes precedence over CredentialsFile. With neither set,
	// GOOGLE_APPLICATION_CREDENTIALS and then application default credentials are used.
	CredentialsJSON []byte
	CredentialsFile string
	RowCacheTTL     time.Duration
}

// Client writes month summaries to one sheet of a spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger

	// mu serializes lookups and appends so two writes of a new key cannot
	// both append.
	mu   sync.Mutex
	rows cache.Cache[int]
}

var _ ports.SummaryWriter = (*Client)(nil)

func New(ctx context.Context, opts Options, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, opts, logger), nil
}

func newClient(svc *gsheet.Service, opts Options, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	name := strings.TrimSpace(opts.SheetName)
	if name == "" {
		name = DefaultSheetName
	}
	ttl := opts.RowCacheTTL
	if ttl <= 0 {
		ttl = defaultRowCacheTTL
	}
	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		sheetName:     name,
		logger:        logger.WithComponent(log.ComponentSheets),
		rows:          cache.NewLRUCache[int](1000, ttl),
	}
}

// RowCache exposes the row index cache so it can be registered with a janitor.
func (c *Client) RowCache() cache.Cache[int] { return c.rows }

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	scope := goption.WithScopes(gsheet.SpreadsheetsScope)
	file := strings.TrimSpace(opts.CredentialsFile)
	if len(opts.CredentialsJSON) == 0 && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case len(opts.CredentialsJSON) > 0:
		return gsheet.NewService(ctx, goption.WithCredentialsJSON(opts.CredentialsJSON), scope)
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return gsheet.NewService(ctx, goption.WithCredentialsJSON(data), scope)
	default:
		return gsheet.NewService(ctx, scope)
	}
}

// WriteSummary updates the row for (user, month) in place or appends it.
func (c *Client) WriteSummary(ctx context.Context, row ports.SummaryRow) (string, error) {
	if row.UserID == "" || row.MonthID == "" {
		return "", errors.New("summary row missing user or month")
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := rowKey(row.UserID, row.MonthID)
	n, ok := c.rows.Get(key)
	if !ok {
		var err error
		n, err = c.locate(ctx, row.UserID, row.MonthID)
		if err != nil {
			return "", err
		}
	}

	values := &gsheet.ValueRange{Values: [][]any{row.Values()}}
	if n > 0 {
		rng := rowRange(c.sheetName, n)
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, values).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			c.rows.Delete(key)
			return "", fmt.Errorf("update %s: %w", rng, err)
		}
		c.rows.Set(key, n)
		return rng, nil
	}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, sheetRef(c.sheetName)+"!A:"+lastColumn, values).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.sheetName, err)
	}
	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
		if n, ok := rowFromRange(ref); ok {
			c.rows.Set(key, n)
		}
	}
	c.logger.InfoContext(ctx, "Appended summary row",
		log.FieldUserID, row.UserID,
		log.FieldMonthID, row.MonthID,
		log.FieldSheetsRef, ref)
	return ref, nil
}

// locate scans the key columns and returns the 1-based row of (user, month),
// or 0 when absent. An empty sheet gets its header written first.
func (c *Client) locate(ctx context.Context, userID, monthID string) (int, error) {
	rng := sheetRef(c.sheetName) + "!A:B"
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) == 0 {
		if err := c.writeHeader(ctx); err != nil {
			return 0, err
		}
		return 0, nil
	}
	for i, r := range resp.Values {
		if len(r) >= 2 {
			c.rows.Set(rowKey(cell(r[0]), cell(r[1])), i+1)
		}
	}
	return findRow(resp.Values, userID, monthID), nil
}

func (c *Client) writeHeader(ctx context.Context) error {
	header := make([]any, len(ports.SummaryHeader))
	for i, h := range ports.SummaryHeader {
		header[i] = h
	}
	rng := rowRange(c.sheetName, 1)
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func rowKey(userID, monthID string) string { return userID + "/" + monthID }

// findRow returns the 1-based row whose first two cells are userID and monthID.
func findRow(values [][]any, userID, monthID string) int {
	for i, r := range values {
		if len(r) < 2 {
			continue
		}
		if cell(r[0]) == userID && cell(r[1]) == monthID {
			return i + 1
		}
	}
	return 0
}

func cell(v any) string { return strings.TrimSpace(fmt.Sprint(v)) }

// sheetRef quotes names that A1 notation cannot take bare.
func sheetRef(name string) string {
	if strings.ContainsAny(name, " '!-") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}

func rowRange(sheet string, n int) string {
	return fmt.Sprintf("%s!A%d:%s%d", sheetRef(sheet), n, lastColumn, n)
}

var rangeRow = regexp.MustCompile(`![A-Z]+(\d+)`)

// rowFromRange extracts the first row number of an A1 range like "Summary!A5:J5".
func rowFromRange(rng string) (int, bool) {
	m := rangeRow.FindStringSubmatch(rng)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
