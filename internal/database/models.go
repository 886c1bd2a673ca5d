package database

import "time"

// Transaction kinds recorded in the guest ledger.
const (
	TxEarn  = "earn"
	TxSpend = "spend"
)

// Transaction is one entry of the guest-mode balance ledger. The ledger is
// append-only: the balance is the sum of earn amounts minus the sum of
// spend amounts over the full log.
type Transaction struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	Type        string  `db:"type"` // earn | spend
	Amount      float64 `db:"amount"`
	Source      string  `db:"source"`
	Description string  `db:"description"`
	Timestamp   float64 `db:"timestamp"` // epoch seconds, fractional
}

// SeenMessage records a message identity key a bot agent has already
// processed, so restarts do not replay triggers.
type SeenMessage struct {
	Key      string    `db:"key"`
	Username string    `db:"username"`
	SeenAt   time.Time `db:"seen_at"`
}
