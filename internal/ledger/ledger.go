// Package ledger derives wallet balances from opening balances and the
// stream of payments and outflows, with conversion to a unified net worth.
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"taller/internal/classify"
	"taller/internal/core"
)

// RiskThresholdPct is the primary rate rise that flags local wallets.
var RiskThresholdPct = decimal.NewFromInt(2)

type MovementKind string

const (
	MovePayment       MovementKind = "payment"
	MoveExpense       MovementKind = "expense"
	MovePayroll       MovementKind = "payroll"
	MoveDesignPayroll MovementKind = "design_payroll"
)

// Movement is one signed amount applied to a wallet, in wallet currency.
type Movement struct {
	Kind        MovementKind    `json:"kind"`
	ID          string          `json:"id"`
	WalletID    string          `json:"wallet_id"`
	Date        string          `json:"date"`
	Label       string          `json:"label"`
	Keyword     string          `json:"keyword,omitempty"`
	Base        decimal.Decimal `json:"base"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
	RateMissing bool            `json:"rate_missing,omitempty"`

	at time.Time
}

type WalletBalance struct {
	core.Wallet
	In              decimal.Decimal `json:"in"`
	Out             decimal.Decimal `json:"out"`
	Balance         decimal.Decimal `json:"balance"`
	BalancePrimary  decimal.Decimal `json:"balance_primary"`
	Movements       int             `json:"movements"`
	DevaluationRisk bool            `json:"devaluation_risk"`
}

type Report struct {
	Wallets           []WalletBalance `json:"wallets"`
	Movements         []Movement      `json:"movements"`
	NetWorth          decimal.Decimal `json:"net_worth"`
	NetWorthSecondary decimal.Decimal `json:"net_worth_secondary"`
	RateVariationPct  decimal.Decimal `json:"rate_variation_pct"`
	DevaluationRisk   bool            `json:"devaluation_risk"`
	RateMissing       bool            `json:"rate_missing"`
}

// Router picks a wallet for a payment method label.
type Router interface {
	Route(method string) (wallet, keyword string)
}

type Input struct {
	Wallets        []core.Wallet
	Payments       []core.Payment
	Expenses       []core.Expense
	Payroll        []core.PayrollPayment
	DesignPayments []core.DesignPayment
	Rates          core.ExchangeRates
}

// DefaultWallets returns the four shop wallets with zero opening balances.
func DefaultWallets() []core.Wallet {
	return []core.Wallet{
		{ID: "cash_usd", Name: "Efectivo USD", Currency: core.CurrencyUSD},
		{ID: "bank_ves", Name: "Banco Bs", Currency: core.CurrencyVES},
		{ID: "remittance_usd", Name: "Zelle / remesas", Currency: core.CurrencyUSD},
		{ID: "crypto_usdt", Name: "USDT", Currency: core.CurrencyUSDT},
	}
}

// Payments flattens the payments of every order, cancelled ones included:
// money received stays in the wallet regardless of the order's fate.
func Payments(orders []core.Order) []core.Payment {
	var out []core.Payment
	for _, o := range orders {
		for _, p := range o.Payments {
			if p.OrderID == "" {
				p.OrderID = o.ID
			}
			out = append(out, p)
		}
	}
	return out
}

// Compute rebuilds every balance from scratch. It keeps no state between
// calls, so identical input gives identical output.
func Compute(in Input, r Router) Report {
	wallets := in.Wallets
	if len(wallets) == 0 {
		wallets = DefaultWallets()
	}
	idx := make(map[string]int, len(wallets))
	rep := Report{Wallets: make([]WalletBalance, len(wallets))}
	for i, w := range wallets {
		idx[w.ID] = i
		rep.Wallets[i] = WalletBalance{Wallet: w, Balance: w.Opening}
	}
	primary := in.Rates.Primary

	resolve := func(method string) (int, string) {
		id, kw := r.Route(method)
		if i, ok := idx[id]; ok {
			return i, kw
		}
		if i, ok := idx[classify.DefaultWallet]; ok {
			return i, ""
		}
		return 0, ""
	}
	apply := func(kind MovementKind, id, label, method string, date core.Date, base, rate decimal.Decimal, sign int64) {
		i, kw := resolve(method)
		w := &rep.Wallets[i]
		m := Movement{Kind: kind, ID: id, WalletID: w.ID, Date: date.String(), Label: label, Keyword: kw, Base: base, Rate: decimal.NewFromInt(1), Amount: base, at: date.Time}
		if w.IsLocal() {
			m.Rate = rate
			m.Amount = base.Mul(rate)
			if !rate.IsPositive() {
				m.Rate, m.Amount, m.RateMissing = decimal.Zero, decimal.Zero, true
				rep.RateMissing = true
			}
		}
		if sign < 0 {
			m.Amount = m.Amount.Neg()
			w.Out = w.Out.Add(m.Amount.Neg())
		} else {
			w.In = w.In.Add(m.Amount)
		}
		w.Balance = w.Balance.Add(m.Amount)
		w.Movements++
		rep.Movements = append(rep.Movements, m)
	}

	for _, p := range in.Payments {
		rate := p.RateUsed
		if !rate.IsPositive() {
			rate = primary
		}
		apply(MovePayment, p.ID, p.OrderID, p.MethodLabel, p.Date, p.Amount, rate, 1)
	}
	for _, e := range in.Expenses {
		apply(MoveExpense, e.ID, e.Name, e.MethodLabel, e.Date, e.Amount, primary, -1)
	}
	for _, pp := range in.Payroll {
		apply(MovePayroll, pp.ID, pp.EmployeeID, pp.MethodLabel, pp.Date, pp.Amount, primary, -1)
	}
	for _, dp := range in.DesignPayments {
		apply(MoveDesignPayroll, dp.ID, dp.StaffID, dp.MethodLabel, dp.Date, dp.Amount, primary, -1)
	}
	sortMovements(rep.Movements)

	rep.RateVariationPct = core.Round2(core.Variation(primary, in.Rates.PreviousPrimary))
	rep.DevaluationRisk = core.Variation(primary, in.Rates.PreviousPrimary).GreaterThan(RiskThresholdPct)

	net := decimal.Zero
	for i := range rep.Wallets {
		w := &rep.Wallets[i]
		if w.IsLocal() {
			w.BalancePrimary = core.SafeDiv(w.Balance, primary)
			w.DevaluationRisk = rep.DevaluationRisk
		} else {
			w.BalancePrimary = w.Balance
		}
		net = net.Add(w.BalancePrimary)
	}
	rep.NetWorth = core.Round2(net)
	if primary.IsPositive() && in.Rates.Secondary.IsPositive() {
		rep.NetWorthSecondary = core.Round2(net.Mul(primary).Div(in.Rates.Secondary))
	}
	return rep
}

// Wallet returns the balance entry for id.
func (r Report) Wallet(id string) (WalletBalance, bool) {
	for _, w := range r.Wallets {
		if w.ID == id {
			return w, true
		}
	}
	return WalletBalance{}, false
}

func sortMovements(ms []Movement) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		if !a.at.Equal(b.at) {
			return a.at.Before(b.at)
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.ID < b.ID
	})
}
