package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Printing     ServiceDomain = "printing"
	LaserCutting ServiceDomain = "laser_cutting"
	Design       ServiceDomain = "design"
	Other        ServiceDomain = "other"
)

const (
	DivisionGeneral  Division = "general"
	DivisionPrinting Division = "printing"
	DivisionLaser    Division = "laser_cutting"
	DivisionDesign   Division = "design"
)

const (
	KindFixed   ExpenseKind = "fixed"
	KindPayroll ExpenseKind = "payroll"
	KindSupply  ExpenseKind = "supply"
)

const (
	CurrencyUSD  Currency = "USD"
	CurrencyVES  Currency = "VES"
	CurrencyUSDT Currency = "USDT"
)

// LocalCurrency is the currency that devalues against the primary rate.
const LocalCurrency = CurrencyVES

type (
	ServiceDomain string
	Division      string
	ExpenseKind   string
	Currency      string

	Client struct {
		Name string `json:"name"`
	}

	Dimensions struct {
		WidthM  decimal.Decimal `json:"width_m"`
		HeightM decimal.Decimal `json:"height_m"`
	}

	Item struct {
		ID                 string          `json:"id"`
		ServiceType        string          `json:"service_type,omitempty"`
		Name               string          `json:"name"`
		Description        string          `json:"description,omitempty"`
		Quantity           decimal.Decimal `json:"quantity"`
		UnitPrice          decimal.Decimal `json:"unit_price"`
		Dimensions         *Dimensions     `json:"dimensions,omitempty"`
		ElapsedMinutes     decimal.Decimal `json:"elapsed_minutes"`
		DesignPaymentState string          `json:"design_payment_state,omitempty"` // pending|paid
		AssignedStaffID    string          `json:"assigned_staff_id,omitempty"`
	}

	Payment struct {
		ID          string          `json:"id"`
		OrderID     string          `json:"order_id"`
		Amount      decimal.Decimal `json:"amount"`
		Date        Date            `json:"date"`
		MethodLabel string          `json:"method"`
		ProofRef    string          `json:"proof_ref,omitempty"`
		RateUsed    decimal.Decimal `json:"rate_used"` // zero when not recorded
	}

	Order struct {
		ID         string          `json:"id"`
		Number     int             `json:"number"`
		Client     Client          `json:"client"`
		Date       Date            `json:"date"`
		Items      []Item          `json:"items"`
		Payments   []Payment       `json:"payments"`
		Total      decimal.Decimal `json:"total"`
		AmountPaid decimal.Decimal `json:"amount_paid"`
		Status     string          `json:"status,omitempty"`
		Cancelled  bool            `json:"cancelled"`
	}

	Expense struct {
		ID          string          `json:"id"`
		Date        Date            `json:"date"`
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Amount      decimal.Decimal `json:"amount"`
		Department  string          `json:"department,omitempty"`
		Type        string          `json:"type,omitempty"`
		MethodLabel string          `json:"method"`
	}

	PayrollPayment struct {
		ID          string          `json:"id"`
		EmployeeID  string          `json:"employee_id"`
		Date        Date            `json:"date"`
		Amount      decimal.Decimal `json:"amount"`
		MethodLabel string          `json:"method"`
	}

	DesignPayment struct {
		ID          string          `json:"id"`
		StaffID     string          `json:"staff_id"`
		OrderID     string          `json:"order_id,omitempty"`
		ItemID      string          `json:"item_id,omitempty"`
		Date        Date            `json:"date"`
		Amount      decimal.Decimal `json:"amount"`
		MethodLabel string          `json:"method"`
	}

	Employee struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		RoleLabel string `json:"role"`
		Active    bool   `json:"active"`
	}

	Wallet struct {
		ID       string          `json:"id" yaml:"id"`
		Name     string          `json:"name" yaml:"name"`
		Currency Currency        `json:"currency" yaml:"currency"`
		Opening  decimal.Decimal `json:"opening" yaml:"opening"`
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrUnknownDivision = errors.New("unknown division")
	ErrInvalidWeek     = errors.New("invalid week of month")
)

var amountEpsilon = decimal.RequireFromString("0.01")

// Epsilon is the smallest balance treated as owed.
func Epsilon() decimal.Decimal { return amountEpsilon }

// Subtotal prices an item by quantity, then by area or minutes when present.
func (it Item) Subtotal() decimal.Decimal {
	qty := it.Quantity
	if !qty.IsPositive() {
		qty = decimal.NewFromInt(1)
	}
	v := qty.Mul(it.UnitPrice)
	switch {
	case it.Dimensions != nil && it.Dimensions.WidthM.IsPositive() && it.Dimensions.HeightM.IsPositive():
		v = v.Mul(it.Dimensions.WidthM.Mul(it.Dimensions.HeightM))
	case it.ElapsedMinutes.IsPositive():
		v = v.Mul(it.ElapsedMinutes)
	}
	return v
}

// Outstanding returns the unpaid balance, clamped at zero.
func (o Order) Outstanding() decimal.Decimal {
	d := o.Total.Sub(o.AmountPaid)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// IsLocal reports whether the wallet holds local currency.
func (w Wallet) IsLocal() bool {
	return w.Currency == LocalCurrency
}

// Domain maps a division onto the service domain it covers.
func (d Division) Domain() ServiceDomain {
	switch d {
	case DivisionPrinting:
		return Printing
	case DivisionLaser:
		return LaserCutting
	case DivisionDesign:
		return Design
	}
	return Other
}

// ParseDivision accepts canonical names and the common local spellings.
func ParseDivision(s string) (Division, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "general", "all", "todos":
		return DivisionGeneral, nil
	case "printing", "print", "impresion", "impresión":
		return DivisionPrinting, nil
	case "laser", "laser_cutting", "corte", "corte laser", "corte láser":
		return DivisionLaser, nil
	case "design", "diseno", "diseño":
		return DivisionDesign, nil
	}
	return "", ErrUnknownDivision
}

// Valid reports whether d is one of the known divisions.
func (d Division) Valid() bool {
	switch d {
	case DivisionGeneral, DivisionPrinting, DivisionLaser, DivisionDesign:
		return true
	}
	return false
}
