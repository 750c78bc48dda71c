package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"taller/internal/core"
	"taller/internal/log"
	ports "taller/internal/sheets"

	_ "modernc.org/sqlite"
)

// ErrNoRates is returned when no exchange rate has been stored yet.
var ErrNoRates = errors.New("no exchange rates stored")

// ErrNoReport is returned when no report matches a lookup.
var ErrNoReport = errors.New("no stored report")

// Ensure interface conformance
var (
	_ ports.Source       = (*SQLiteRepository)(nil)
	_ ports.RecordWriter = (*SQLiteRepository)(nil)
)

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

type Option func(*SQLiteRepository)

func WithLogger(l *log.Logger) Option {
	return func(r *SQLiteRepository) { r.logger = l.WithComponent(log.ComponentStorage) }
}

// Report is a persisted computation result.
type Report struct {
	ID         string
	Month      string // YYYY-MM
	Week       int
	Division   string
	Reason     string
	Partial    bool
	Payload    []byte
	ComputedAt time.Time
}

func NewSQLiteRepository(dbPath string, opts ...Option) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// foreign_keys is per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	r := &SQLiteRepository{db: db, logger: log.Default(log.ComponentStorage)}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListOrders returns orders with their items and payments, oldest first.
func (r *SQLiteRepository) ListOrders(ctx context.Context) ([]core.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, number, client_name, date, total, amount_paid, status, cancelled
		FROM orders ORDER BY date, number, id`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []core.Order
	idx := map[string]int{}
	for rows.Next() {
		var (
			o                 core.Order
			date, total, paid string
			cancelled         int
		)
		if err := rows.Scan(&o.ID, &o.Number, &o.Client.Name, &date, &total, &paid, &o.Status, &cancelled); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Date = core.LenientDate(date)
		o.Total = r.amount(ctx, "orders.total", o.ID, total)
		o.AmountPaid = r.amount(ctx, "orders.amount_paid", o.ID, paid)
		o.Cancelled = cancelled != 0
		idx[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	if err := r.loadItems(ctx, orders, idx); err != nil {
		return nil, err
	}
	if err := r.loadPayments(ctx, orders, idx); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *SQLiteRepository) loadItems(ctx context.Context, orders []core.Order, idx map[string]int) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, service_type, name, description, quantity, unit_price,
		       width_m, height_m, elapsed_minutes, design_payment_state, assigned_staff_id
		FROM order_items ORDER BY order_id, position, id`)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it                     core.Item
			orderID, qty, price    string
			width, height, minutes sql.NullString
		)
		if err := rows.Scan(&it.ID, &orderID, &it.ServiceType, &it.Name, &it.Description, &qty, &price,
			&width, &height, &minutes, &it.DesignPaymentState, &it.AssignedStaffID); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		it.Quantity = r.amount(ctx, "order_items.quantity", it.ID, qty)
		it.UnitPrice = r.amount(ctx, "order_items.unit_price", it.ID, price)
		if width.Valid && height.Valid {
			it.Dimensions = &core.Dimensions{
				WidthM:  r.amount(ctx, "order_items.width_m", it.ID, width.String),
				HeightM: r.amount(ctx, "order_items.height_m", it.ID, height.String),
			}
		}
		if minutes.Valid {
			it.ElapsedMinutes = r.amount(ctx, "order_items.elapsed_minutes", it.ID, minutes.String)
		}
		if i, ok := idx[orderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order items: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) loadPayments(ctx context.Context, orders []core.Order, idx map[string]int) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, amount, date, method, proof_ref, rate_used
		FROM payments ORDER BY order_id, date, id`)
	if err != nil {
		return fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p               core.Payment
			amt, date, rate string
		)
		if err := rows.Scan(&p.ID, &p.OrderID, &amt, &date, &p.MethodLabel, &p.ProofRef, &rate); err != nil {
			return fmt.Errorf("scan payment: %w", err)
		}
		p.Amount = r.amount(ctx, "payments.amount", p.ID, amt)
		p.RateUsed = r.amount(ctx, "payments.rate_used", p.ID, rate)
		p.Date = core.LenientDate(date)
		if i, ok := idx[p.OrderID]; ok {
			orders[i].Payments = append(orders[i].Payments, p)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate payments: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, date, name, description, amount, department, type, method
		FROM expenses ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e         core.Expense
			date, amt string
		)
		if err := rows.Scan(&e.ID, &date, &e.Name, &e.Description, &amt, &e.Department, &e.Type, &e.MethodLabel); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Date = core.LenientDate(date)
		e.Amount = r.amount(ctx, "expenses.amount", e.ID, amt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) ListPayroll(ctx context.Context) ([]core.PayrollPayment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, employee_id, date, amount, method
		FROM payroll_payments ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("query payroll: %w", err)
	}
	defer rows.Close()

	var out []core.PayrollPayment
	for rows.Next() {
		var (
			p         core.PayrollPayment
			date, amt string
		)
		if err := rows.Scan(&p.ID, &p.EmployeeID, &date, &amt, &p.MethodLabel); err != nil {
			return nil, fmt.Errorf("scan payroll payment: %w", err)
		}
		p.Date = core.LenientDate(date)
		p.Amount = r.amount(ctx, "payroll_payments.amount", p.ID, amt)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payroll: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) ListDesignPayments(ctx context.Context) ([]core.DesignPayment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, staff_id, order_id, item_id, date, amount, method
		FROM design_payments ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("query design payments: %w", err)
	}
	defer rows.Close()

	var out []core.DesignPayment
	for rows.Next() {
		var (
			p         core.DesignPayment
			date, amt string
		)
		if err := rows.Scan(&p.ID, &p.StaffID, &p.OrderID, &p.ItemID, &date, &amt, &p.MethodLabel); err != nil {
			return nil, fmt.Errorf("scan design payment: %w", err)
		}
		p.Date = core.LenientDate(date)
		p.Amount = r.amount(ctx, "design_payments.amount", p.ID, amt)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate design payments: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) ListEmployees(ctx context.Context) ([]core.Employee, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, role, active FROM employees ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	var out []core.Employee
	for rows.Next() {
		var (
			e      core.Employee
			active int
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.RoleLabel, &active); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		e.Active = active != 0
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}
	return out, nil
}

// SaveOrders upserts orders and replaces their items and payments.
func (r *SQLiteRepository) SaveOrders(ctx context.Context, orders []core.Order) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for _, o := range orders {
			if o.ID == "" {
				o.ID = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO orders (id, number, client_name, date, total, amount_paid, status, cancelled)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET number=excluded.number, client_name=excluded.client_name,
					date=excluded.date, total=excluded.total, amount_paid=excluded.amount_paid,
					status=excluded.status, cancelled=excluded.cancelled`,
				o.ID, o.Number, o.Client.Name, o.Date.String(), o.Total.String(), o.AmountPaid.String(), o.Status, boolInt(o.Cancelled)); err != nil {
				return fmt.Errorf("upsert order %s: %w", o.ID, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, o.ID); err != nil {
				return fmt.Errorf("clear items of order %s: %w", o.ID, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE order_id = ?`, o.ID); err != nil {
				return fmt.Errorf("clear payments of order %s: %w", o.ID, err)
			}
			for pos, it := range o.Items {
				if it.ID == "" {
					it.ID = uuid.NewString()
				}
				var width, height, minutes sql.NullString
				if it.Dimensions != nil {
					width = sql.NullString{String: it.Dimensions.WidthM.String(), Valid: true}
					height = sql.NullString{String: it.Dimensions.HeightM.String(), Valid: true}
				}
				if !it.ElapsedMinutes.IsZero() {
					minutes = sql.NullString{String: it.ElapsedMinutes.String(), Valid: true}
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO order_items (id, order_id, position, service_type, name, description, quantity, unit_price,
						width_m, height_m, elapsed_minutes, design_payment_state, assigned_staff_id)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					it.ID, o.ID, pos, it.ServiceType, it.Name, it.Description, it.Quantity.String(), it.UnitPrice.String(),
					width, height, minutes, it.DesignPaymentState, it.AssignedStaffID); err != nil {
					return fmt.Errorf("insert item %s: %w", it.ID, err)
				}
			}
			for _, p := range o.Payments {
				if p.ID == "" {
					p.ID = uuid.NewString()
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO payments (id, order_id, amount, date, method, proof_ref, rate_used)
					VALUES (?, ?, ?, ?, ?, ?, ?)`,
					p.ID, o.ID, p.Amount.String(), p.Date.String(), p.MethodLabel, p.ProofRef, p.RateUsed.String()); err != nil {
					return fmt.Errorf("insert payment %s: %w", p.ID, err)
				}
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) SaveExpenses(ctx context.Context, expenses []core.Expense) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for _, e := range expenses {
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO expenses (id, date, name, description, amount, department, type, method)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				e.ID, e.Date.String(), e.Name, e.Description, e.Amount.String(), e.Department, e.Type, e.MethodLabel); err != nil {
				return fmt.Errorf("save expense %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) SavePayroll(ctx context.Context, payroll []core.PayrollPayment) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for _, p := range payroll {
			if p.ID == "" {
				p.ID = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO payroll_payments (id, employee_id, date, amount, method)
				VALUES (?, ?, ?, ?, ?)`,
				p.ID, p.EmployeeID, p.Date.String(), p.Amount.String(), p.MethodLabel); err != nil {
				return fmt.Errorf("save payroll payment %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) SaveDesignPayments(ctx context.Context, payments []core.DesignPayment) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for _, p := range payments {
			if p.ID == "" {
				p.ID = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO design_payments (id, staff_id, order_id, item_id, date, amount, method)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				p.ID, p.StaffID, p.OrderID, p.ItemID, p.Date.String(), p.Amount.String(), p.MethodLabel); err != nil {
				return fmt.Errorf("save design payment %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) SaveEmployees(ctx context.Context, employees []core.Employee) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for _, e := range employees {
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO employees (id, name, role, active) VALUES (?, ?, ?, ?)`,
				e.ID, e.Name, e.RoleLabel, boolInt(e.Active)); err != nil {
				return fmt.Errorf("save employee %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// SaveRates stores a rate observation for the day of rates.AsOf.
func (r *SQLiteRepository) SaveRates(ctx context.Context, rates core.ExchangeRates) error {
	at := rates.AsOf
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO exchange_rates (day, primary_rate, secondary_rate, source, fetched_at)
		VALUES (?, ?, ?, ?, ?)`,
		at.UTC().Format("2006-01-02"), rates.Primary.String(), rates.Secondary.String(), rates.Source, at.UTC())
	if err != nil {
		return fmt.Errorf("save exchange rates: %w", err)
	}
	r.logger.InfoContext(ctx, "Exchange rates saved", "primary", rates.Primary.String(), "secondary", rates.Secondary.String(), "source", rates.Source)
	return nil
}

// CurrentRates returns the latest observation with the last rate of an
// earlier day as PreviousPrimary.
func (r *SQLiteRepository) CurrentRates(ctx context.Context) (core.ExchangeRates, error) {
	var (
		out                  core.ExchangeRates
		day, primary, second string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT day, primary_rate, secondary_rate, source, fetched_at
		FROM exchange_rates ORDER BY fetched_at DESC, id DESC LIMIT 1`).
		Scan(&day, &primary, &second, &out.Source, &out.AsOf)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExchangeRates{}, ErrNoRates
	}
	if err != nil {
		return core.ExchangeRates{}, fmt.Errorf("query latest rates: %w", err)
	}
	out.Primary = r.amount(ctx, "exchange_rates.primary_rate", day, primary)
	out.Secondary = r.amount(ctx, "exchange_rates.secondary_rate", day, second)

	var prev string
	err = r.db.QueryRowContext(ctx, `
		SELECT primary_rate FROM exchange_rates WHERE day < ?
		ORDER BY day DESC, fetched_at DESC, id DESC LIMIT 1`, day).Scan(&prev)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		out.PreviousPrimary = out.Primary
	case err != nil:
		return out, fmt.Errorf("query previous rates: %w", err)
	default:
		out.PreviousPrimary = r.amount(ctx, "exchange_rates.primary_rate", day, prev)
	}
	return out, nil
}

func (r *SQLiteRepository) SaveReport(ctx context.Context, rep Report) (string, error) {
	if rep.ID == "" {
		rep.ID = uuid.NewString()
	}
	if rep.ComputedAt.IsZero() {
		rep.ComputedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reports (id, month, week, division, reason, partial, payload, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.Month, rep.Week, rep.Division, rep.Reason, boolInt(rep.Partial), string(rep.Payload), rep.ComputedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return rep.ID, nil
}

// LatestReport returns the most recent report for a month, week and division.
func (r *SQLiteRepository) LatestReport(ctx context.Context, month string, week int, division string) (Report, error) {
	var (
		rep     Report
		partial int
		payload string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, month, week, division, reason, partial, payload, computed_at
		FROM reports WHERE month = ? AND week = ? AND division = ?
		ORDER BY computed_at DESC LIMIT 1`, month, week, division).
		Scan(&rep.ID, &rep.Month, &rep.Week, &rep.Division, &rep.Reason, &partial, &payload, &rep.ComputedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, ErrNoReport
	}
	if err != nil {
		return Report{}, fmt.Errorf("query report: %w", err)
	}
	rep.Partial = partial != 0
	rep.Payload = []byte(payload)
	return rep, nil
}

// PruneReports deletes reports computed before cutoff.
func (r *SQLiteRepository) PruneReports(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE computed_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune reports: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// amount parses a stored decimal, logging and zeroing values that do not parse.
func (r *SQLiteRepository) amount(ctx context.Context, column, id, s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		r.logger.WarnContext(ctx, "Invalid stored amount", "column", column, "id", id, "value", s)
		return decimal.Zero
	}
	return d
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
