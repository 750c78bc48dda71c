package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"taller/internal/core"
	ports "taller/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc            *gsheet.Service
	spreadsheetID  string
	expensesSheet  string
	payrollSheet   string
	employeesSheet string
}

// Ensure interface conformance
var _ ports.SheetReader = (*Client)(nil)

// Options configures a Client. Credentials come from CredentialsJSON, then
// CredentialsFile.
type Options struct {
	SpreadsheetID   string
	ExpensesSheet   string
	PayrollSheet    string
	EmployeesSheet  string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, opts.CredentialsJSON, opts.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{
		svc:            svc,
		spreadsheetID:  strings.TrimSpace(opts.SpreadsheetID),
		expensesSheet:  orDefault(opts.ExpensesSheet, "Gastos"),
		payrollSheet:   orDefault(opts.PayrollSheet, "Nomina"),
		employeesSheet: orDefault(opts.EmployeesSheet, "Empleados"),
	}, nil
}

// newSheetsService initializes a read-only Sheets service from service
// account credentials.
func newSheetsService(ctx context.Context, credentialsJSON, credentialsFile string) (*gsheet.Service, error) {
	var (
		creds []byte
		err   error
	)
	switch {
	case strings.TrimSpace(credentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		creds = []byte(credentialsJSON)
	case strings.TrimSpace(credentialsFile) != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", credentialsFile)
		creds, err = os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

func (c *Client) values(ctx context.Context, sheet string) ([][]interface{}, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:Z", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("FORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// ReadExpenses reads the expenses sheet. Rows that cannot be imported are
// returned as row errors.
func (c *Client) ReadExpenses(ctx context.Context) ([]core.Expense, []ports.RowError, error) {
	vals, err := c.values(ctx, c.expensesSheet)
	if err != nil {
		return nil, nil, err
	}
	return parseExpenses(c.expensesSheet, vals)
}

// ReadPayroll reads the payroll sheet, resolving employee names against emps.
func (c *Client) ReadPayroll(ctx context.Context, emps []core.Employee) ([]core.PayrollPayment, []ports.RowError, error) {
	vals, err := c.values(ctx, c.payrollSheet)
	if err != nil {
		return nil, nil, err
	}
	return parsePayroll(c.payrollSheet, vals, emps)
}

func (c *Client) ReadEmployees(ctx context.Context) ([]core.Employee, []ports.RowError, error) {
	vals, err := c.values(ctx, c.employeesSheet)
	if err != nil {
		return nil, nil, err
	}
	return parseEmployees(c.employeesSheet, vals)
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
