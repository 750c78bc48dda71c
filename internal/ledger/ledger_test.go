package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taller/internal/classify"
	"taller/internal/core"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func router() *classify.WalletRouter {
	return classify.NewWalletRouter(classify.DefaultTables())
}

func wallets(cash string) []core.Wallet {
	ws := DefaultWallets()
	ws[0].Opening = dec(cash)
	return ws
}

func TestComputeCashWallet(t *testing.T) {
	in := Input{
		Wallets:  wallets("100"),
		Payments: []core.Payment{{ID: "p1", Amount: dec("50"), Date: core.NewDate(2025, 3, 1), MethodLabel: "Efectivo"}},
		Expenses: []core.Expense{{ID: "e1", Amount: dec("20"), Date: core.NewDate(2025, 3, 2), MethodLabel: "efectivo"}},
		Rates:    core.ExchangeRates{Primary: dec("40")},
	}
	r := Compute(in, router())

	cash, ok := r.Wallet("cash_usd")
	require.True(t, ok)
	assert.True(t, cash.Balance.Equal(dec("130")), "balance %s", cash.Balance)
	assert.True(t, cash.In.Equal(dec("50")))
	assert.True(t, cash.Out.Equal(dec("20")))
	assert.Equal(t, 2, cash.Movements)
}

func TestComputeLocalWalletUsesRecordedRate(t *testing.T) {
	in := Input{
		Payments: []core.Payment{
			{ID: "old", Amount: dec("10"), Date: core.NewDate(2025, 1, 5), MethodLabel: "pago móvil", RateUsed: dec("35")},
			{ID: "new", Amount: dec("10"), Date: core.NewDate(2025, 3, 5), MethodLabel: "transferencia"},
		},
		Payroll: []core.PayrollPayment{{ID: "n1", Amount: dec("5"), Date: core.NewDate(2025, 3, 6), MethodLabel: "pago movil"}},
		Rates:   core.ExchangeRates{Primary: dec("40"), Secondary: dec("44"), PreviousPrimary: dec("40")},
	}
	r := Compute(in, router())

	bank, ok := r.Wallet("bank_ves")
	require.True(t, ok)
	assert.True(t, bank.Balance.Equal(dec("550")), "350 + 400 - 200, got %s", bank.Balance)
	assert.True(t, bank.BalancePrimary.Equal(dec("13.75")))
	assert.False(t, bank.DevaluationRisk)
	assert.True(t, r.NetWorth.Equal(dec("13.75")))
	assert.True(t, r.NetWorthSecondary.Equal(dec("12.5")), "secondary %s", r.NetWorthSecondary)
}

func TestComputeMissingRate(t *testing.T) {
	in := Input{
		Payments: []core.Payment{{ID: "p1", Amount: dec("10"), MethodLabel: "pago movil"}},
	}
	r := Compute(in, router())

	bank, _ := r.Wallet("bank_ves")
	assert.True(t, bank.Balance.IsZero())
	assert.True(t, bank.BalancePrimary.IsZero())
	assert.True(t, r.RateMissing)
	assert.True(t, r.RateVariationPct.IsZero())
	assert.True(t, r.NetWorthSecondary.IsZero())
	require.Len(t, r.Movements, 1)
	assert.True(t, r.Movements[0].RateMissing)
}

func TestComputeDevaluationRisk(t *testing.T) {
	r := Compute(Input{Rates: core.ExchangeRates{Primary: dec("40"), PreviousPrimary: dec("38")}}, router())
	assert.True(t, r.RateVariationPct.Equal(dec("5.26")), "variation %s", r.RateVariationPct)
	assert.True(t, r.DevaluationRisk)
	for _, w := range r.Wallets {
		assert.Equal(t, w.IsLocal(), w.DevaluationRisk, w.ID)
	}

	r = Compute(Input{Rates: core.ExchangeRates{Primary: dec("40.5"), PreviousPrimary: dec("40")}}, router())
	assert.False(t, r.DevaluationRisk, "1.25% is below the threshold")
}

func TestComputeRoutingAndIdempotence(t *testing.T) {
	orders := []core.Order{{
		ID: "o1", Cancelled: true,
		Payments: []core.Payment{
			{ID: "b", Amount: dec("20"), Date: core.NewDate(2025, 3, 2), MethodLabel: "Zelle"},
			{ID: "a", Amount: dec("5"), Date: core.NewDate(2025, 3, 1), MethodLabel: "USDT"},
		},
	}}
	in := Input{
		Wallets:        wallets("0"),
		Payments:       Payments(orders),
		DesignPayments: []core.DesignPayment{{ID: "d1", Amount: dec("3"), Date: core.NewDate(2025, 3, 3), MethodLabel: "binance"}},
		Rates:          core.ExchangeRates{Primary: dec("40")},
	}
	first := Compute(in, router())
	second := Compute(in, router())
	assert.Equal(t, first, second)

	rem, _ := first.Wallet("remittance_usd")
	assert.True(t, rem.Balance.Equal(dec("20")))
	crypto, _ := first.Wallet("crypto_usdt")
	assert.True(t, crypto.Balance.Equal(dec("2")))
	assert.True(t, first.NetWorth.Equal(dec("22")))

	require.Len(t, first.Movements, 3)
	assert.Equal(t, "a", first.Movements[0].ID, "movements sorted by date")
	assert.Equal(t, "o1", first.Movements[0].Label)
}

func TestComputeUnknownWalletFallsBackToCash(t *testing.T) {
	in := Input{
		Wallets:  []core.Wallet{{ID: "cash_usd", Currency: core.CurrencyUSD}},
		Payments: []core.Payment{{ID: "p", Amount: dec("7"), MethodLabel: "zelle"}},
	}
	r := Compute(in, router())
	require.Len(t, r.Wallets, 1)
	assert.True(t, r.Wallets[0].Balance.Equal(dec("7")))
}
