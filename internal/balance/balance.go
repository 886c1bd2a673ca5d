// Package balance implements the faucet balance client. Member sessions use
// the remote balance endpoint scoped by user id; guest sessions use the
// local append-only transaction ledger in sqlite.
//
// A member-mode remote failure is surfaced to the caller rather than
// silently recomputed from the guest ledger, so a logged-in user can never
// accrue a local-only shadow balance.
package balance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/roflfaucet/roflchat/internal/database"
)

// ErrInsufficientBalance is returned by Subtract when the amount exceeds the
// current balance. No transaction is recorded in that case.
var ErrInsufficientBalance = errors.New("Insufficient balance")

// Client reads and mutates a user's balance. Construct with NewMemberClient
// or NewGuestClient.
type Client struct {
	userID     string
	baseURL    string
	httpClient *http.Client
	store      database.Store
	logger     *slog.Logger
}

// NewMemberClient creates a balance client backed by the remote balance
// endpoint, scoped by user id.
func NewMemberClient(baseURL, userID string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("balance base URL is required")
	}
	if userID == "" {
		return nil, fmt.Errorf("user id is required for a member balance client")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		userID:     userID,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "balance_client", "mode", "member"),
	}, nil
}

// NewGuestClient creates a balance client backed by the local transaction
// ledger. The ledger is exclusively owned by this client and is never merged
// with any remote ledger.
func NewGuestClient(store database.Store, logger *slog.Logger) (*Client, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required for a guest balance client")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		store:  store,
		logger: logger.With("component", "balance_client", "mode", "guest"),
	}, nil
}

// Guest reports whether the client runs against the local ledger.
func (c *Client) Guest() bool { return c.store != nil }

// Get returns the current balance.
func (c *Client) Get(ctx context.Context) (float64, error) {
	if c.Guest() {
		return c.store.SumBalance(ctx)
	}
	return c.remoteGet(ctx)
}

// Add credits the balance and returns the new total.
func (c *Client) Add(ctx context.Context, amount float64, source, description string) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive, got %v", amount)
	}
	if c.Guest() {
		tx := &database.Transaction{
			Type:        database.TxEarn,
			Amount:      amount,
			Source:      source,
			Description: description,
		}
		if err := c.store.AppendTransaction(ctx, tx); err != nil {
			return 0, err
		}
		return c.store.SumBalance(ctx)
	}
	return c.remoteAdjust(ctx, amount, source)
}

// Subtract debits the balance and returns the new total. In guest mode a
// debit that would drive the balance negative fails with
// ErrInsufficientBalance and records nothing.
func (c *Client) Subtract(ctx context.Context, amount float64, source, description string) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive, got %v", amount)
	}
	if c.Guest() {
		current, err := c.store.SumBalance(ctx)
		if err != nil {
			return 0, err
		}
		if amount > current {
			c.logger.DebugContext(ctx, "Rejected debit exceeding balance", "amount", amount, "balance", current, "source", source)
			return current, ErrInsufficientBalance
		}
		tx := &database.Transaction{
			Type:        database.TxSpend,
			Amount:      amount,
			Source:      source,
			Description: description,
		}
		if err := c.store.AppendTransaction(ctx, tx); err != nil {
			return 0, err
		}
		return c.store.SumBalance(ctx)
	}
	return c.remoteAdjust(ctx, -amount, source)
}

type balanceGetResponse struct {
	Success bool    `json:"success"`
	Balance float64 `json:"balance"`
	Error   string  `json:"error,omitempty"`
}

type balancePostResponse struct {
	Success    bool    `json:"success"`
	NewBalance float64 `json:"new_balance"`
	Error      string  `json:"error,omitempty"`
}

func (c *Client) remoteGet(ctx context.Context) (float64, error) {
	q := url.Values{}
	q.Set("user_id", c.userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/balance?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create balance request: %w", err)
	}

	var resp balanceGetResponse
	if err := c.do(req, &resp); err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, fmt.Errorf("balance lookup rejected by server: %s", resp.Error)
	}
	return resp.Balance, nil
}

func (c *Client) remoteAdjust(ctx context.Context, signedAmount float64, source string) (float64, error) {
	payload, err := json.Marshal(map[string]any{
		"user_id": c.userID,
		"amount":  signedAmount,
		"source":  source,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to encode balance mutation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/balance", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create balance request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp balancePostResponse
	if err := c.do(req, &resp); err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, fmt.Errorf("balance mutation rejected by server: %s", resp.Error)
	}
	return resp.NewBalance, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("balance request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Failed to close balance response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d from balance endpoint: %s", resp.StatusCode, string(snippet))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read balance response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid JSON from balance endpoint: %w", err)
	}
	return nil
}
