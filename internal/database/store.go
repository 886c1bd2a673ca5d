package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// AppendTransaction inserts a new ledger entry. It does not check the
	// balance invariant; callers enforce non-negativity before appending.
	AppendTransaction(ctx context.Context, tx *Transaction) error

	// SumBalance computes the guest balance over the full transaction log
	// (earn total minus spend total).
	SumBalance(ctx context.Context) (float64, error)

	// RecentTransactions returns the most recent 'limit' ledger entries,
	// newest first.
	RecentTransactions(ctx context.Context, limit int) ([]Transaction, error)

	// MarkSeen records that a bot has processed the given message keys.
	// Already-recorded keys are ignored.
	MarkSeen(ctx context.Context, entries []SeenMessage) error

	// IsSeen reports whether a message key was already processed.
	IsSeen(ctx context.Context, key string) (bool, error)

	// PruneSeen deletes seen-message records older than the cutoff and
	// returns the number removed.
	PruneSeen(ctx context.Context, olderThan time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AppendTransaction inserts a new ledger entry.
func (s *sqlxStore) AppendTransaction(ctx context.Context, tx *Transaction) error {
	if tx == nil {
		return fmt.Errorf("cannot append nil transaction")
	}
	if tx.Type != TxEarn && tx.Type != TxSpend {
		return fmt.Errorf("transaction type must be %q or %q, got %q", TxEarn, TxSpend, tx.Type)
	}
	if tx.Amount <= 0 {
		return fmt.Errorf("transaction amount must be positive, got %v", tx.Amount)
	}
	if tx.Source == "" {
		return fmt.Errorf("transaction must have a source")
	}

	tx.CreatedAt = time.Now().UTC()
	if tx.Timestamp == 0 {
		tx.Timestamp = float64(tx.CreatedAt.UnixNano()) / 1e9
	}

	query := `
        INSERT INTO transactions (type, amount, source, description, timestamp, created_at)
        VALUES (:type, :amount, :source, :description, :timestamp, :created_at);
    `

	result, err := s.db.NamedExecContext(ctx, query, tx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error appending transaction", "type", tx.Type, "source", tx.Source, "error", err)
		return fmt.Errorf("failed to append %s transaction from %s: %w", tx.Type, tx.Source, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		tx.ID = id
	} else {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after appending transaction", "error", err)
	}

	s.logger.DebugContext(ctx, "Transaction appended", "id", tx.ID, "type", tx.Type, "amount", tx.Amount, "source", tx.Source)
	return nil
}

// SumBalance computes the guest balance over the full transaction log.
func (s *sqlxStore) SumBalance(ctx context.Context) (float64, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	var balance sql.NullFloat64
	query := `
        SELECT COALESCE(SUM(CASE WHEN type = 'earn' THEN amount ELSE -amount END), 0)
        FROM transactions;
    `

	err := s.db.GetContext(ctx, &balance, query)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error summing guest balance", "error", err)
		return 0, fmt.Errorf("failed to sum guest balance: %w", err)
	}

	return balance.Float64, nil
}

// RecentTransactions returns the most recent 'limit' ledger entries, newest first.
func (s *sqlxStore) RecentTransactions(ctx context.Context, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 20
	} else if limit > 500 {
		limit = 500
	}

	var txs []Transaction
	query := `
        SELECT id, type, amount, source, description, timestamp, created_at
        FROM transactions
        ORDER BY timestamp DESC, id DESC
        LIMIT ?;
    `

	err := s.db.SelectContext(ctx, &txs, query, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting recent transactions", "limit", limit, "error", err)
		return nil, fmt.Errorf("failed to get recent transactions: %w", err)
	}

	return txs, nil
}

// MarkSeen records that a bot has processed the given message keys.
func (s *sqlxStore) MarkSeen(ctx context.Context, entries []SeenMessage) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for marking seen messages", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	query := `
        INSERT INTO seen_messages (key, username, seen_at)
        VALUES (:key, :username, :seen_at)
        ON CONFLICT (key) DO NOTHING;
    `
	for i := range entries {
		if entries[i].SeenAt.IsZero() {
			entries[i].SeenAt = time.Now().UTC()
		}
		if _, err := tx.NamedExecContext(ctx, query, entries[i]); err != nil {
			s.logger.ErrorContext(ctx, "Error marking message as seen", "key", entries[i].Key, "error", err)
			return fmt.Errorf("failed to mark message %s as seen: %w", entries[i].Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit seen-message transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Marked messages as seen", "count", len(entries))
	return nil
}

// IsSeen reports whether a message key was already processed.
func (s *sqlxStore) IsSeen(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("message key is empty")
	}

	var one int
	err := s.db.GetContext(ctx, &one, `SELECT 1 FROM seen_messages WHERE key = ? LIMIT 1`, key)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error checking seen message", "key", key, "error", err)
		return false, fmt.Errorf("failed to check seen message %s: %w", key, err)
	}
	return true, nil
}

// PruneSeen deletes seen-message records older than the cutoff.
func (s *sqlxStore) PruneSeen(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM seen_messages WHERE seen_at < ?`, olderThan.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error pruning seen messages", "error", err)
		return 0, fmt.Errorf("failed to prune seen messages: %w", err)
	}

	count, _ := result.RowsAffected()
	if count > 0 {
		s.logger.InfoContext(ctx, "Pruned seen messages", "count", count, "older_than", olderThan)
	}
	return count, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}
