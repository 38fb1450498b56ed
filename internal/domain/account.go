package domain

// Account holds the bot's capital state. There is exactly one Account per
// bot instance; it is owned and mutated by the Portfolio.
type Account struct {
	ID                 string  // Account identifier
	Balance            float64 // Free capital
	Margin             float64 // Capital locked/implied by open positions
	OpenPositionsCount int     // Always equals the number of open positions in the ledger
}
