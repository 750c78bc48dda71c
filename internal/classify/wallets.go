package classify

// DefaultWallet receives any movement whose method label matches nothing.
const DefaultWallet = "cash_usd"

// WalletRouter picks a wallet from a free-text payment method label.
type WalletRouter struct {
	table    Table
	fallback string
}

func NewWalletRouter(t Tables) *WalletRouter {
	return &WalletRouter{table: t.Wallets, fallback: DefaultWallet}
}

// Route returns the wallet ID and the keyword that selected it.
func (r *WalletRouter) Route(method string) (wallet, keyword string) {
	if label, kw, ok := r.table.Match(method); ok {
		return label, kw
	}
	return r.fallback, ""
}
