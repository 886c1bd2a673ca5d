// Package bot implements the chat bot agents (Anzar, ROFLBot): a shared
// polling loop with deduplication and backoff, a gocron task scheduler, and
// the per-bot trigger handlers.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roflfaucet/roflchat/internal/chat"
	"github.com/roflfaucet/roflchat/internal/config"
	"github.com/roflfaucet/roflchat/internal/database"
)

// ErrRetriesExhausted is returned by Run when consecutive poll failures
// exceed the configured maximum. The agent stops itself; relaunching is the
// supervisor's business.
var ErrRetriesExhausted = errors.New("max poll retries exhausted")

const recentWindowSize = 25

// MessageHandler decides whether the agent replies to a message. recent is
// a short window of previously observed messages, oldest first, for
// handlers that need conversational context.
type MessageHandler func(ctx context.Context, m chat.Message, recent []chat.Message) (reply string, handled bool)

// Agent is a scheduled chat participant sharing the widget's wire protocol.
// Unlike the browser client, which retries forever at a fixed interval, the
// agent backs off exponentially on poll failure and stops itself after too
// many consecutive failures.
type Agent struct {
	logger  *slog.Logger
	client  *chat.Client
	store   database.Store
	cfg     config.BotConfig
	room    string
	handler MessageHandler

	mu          sync.Mutex
	cursor      float64
	onlineCount int
	processed   map[string]struct{}
	contentSeen map[string]time.Time
	recent      []chat.Message
}

// NewAgent creates an agent polling as the given authenticated client.
func NewAgent(logger *slog.Logger, client *chat.Client, store database.Store, cfg config.BotConfig, room string, handler MessageHandler) (*Agent, error) {
	if client == nil {
		return nil, fmt.Errorf("chat client is required")
	}
	if client.Guest() {
		return nil, fmt.Errorf("bot agents need an authenticated client")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		logger:      logger.With("component", "bot_agent", "bot", cfg.Name),
		client:      client,
		store:       store,
		cfg:         cfg,
		room:        room,
		handler:     handler,
		processed:   make(map[string]struct{}),
		contentSeen: make(map[string]time.Time),
	}, nil
}

// OnlineCount returns the online count from the most recent successful poll.
func (a *Agent) OnlineCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.onlineCount
}

// Say posts a message to the agent's room.
func (a *Agent) Say(ctx context.Context, text string) error {
	return a.client.Send(ctx, a.room, text)
}

// Run polls sequentially until the context is cancelled or retries are
// exhausted. On graceful stop it posts the farewell message. Results are
// applied strictly in arrival order; no concurrent polls are in flight.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("Bot agent starting", "room", a.room, "poll_interval", a.cfg.PollInterval)

	retries := 0
	for {
		if err := a.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				a.farewell()
				return nil
			}
			retries++
			if retries > a.cfg.MaxRetries {
				a.logger.Error("Poll retries exhausted, stopping agent", "retries", retries)
				return fmt.Errorf("%w after %d attempts", ErrRetriesExhausted, retries)
			}
			delay := a.backoffDelay(retries)
			a.logger.Warn("Poll failed, backing off", "attempt", retries, "delay", delay, "error", err)
			if !sleepCtx(ctx, delay) {
				a.farewell()
				return nil
			}
			continue
		}

		retries = 0
		if !sleepCtx(ctx, a.cfg.PollInterval) {
			a.farewell()
			return nil
		}
	}
}

func (a *Agent) pollOnce(ctx context.Context) error {
	a.mu.Lock()
	since := a.cursor
	a.mu.Unlock()

	res, err := a.client.Poll(ctx, since)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.cursor = chat.NextCursor(a.cursor, res)
	a.onlineCount = res.OnlineCount
	a.mu.Unlock()

	a.processMessages(ctx, res.Messages)
	return nil
}

func (a *Agent) processMessages(ctx context.Context, messages []chat.Message) {
	var seenBatch []database.SeenMessage
	now := time.Now()

	for _, m := range messages {
		if m.Username == a.client.Username() {
			continue
		}

		key := dedupKey(m)
		a.mu.Lock()
		if _, dup := a.processed[key]; dup {
			a.mu.Unlock()
			continue
		}
		a.processed[key] = struct{}{}
		// Coarse cap: clear wholesale when oversized rather than tracking
		// recency per entry.
		if len(a.processed) > a.cfg.DedupCacheSize {
			a.processed = map[string]struct{}{key: {}}
			a.logger.Debug("Cleared processed-message cache", "cap", a.cfg.DedupCacheSize)
		}

		contentKey := m.Username + ":" + m.Message
		if last, ok := a.contentSeen[contentKey]; ok && now.Sub(last) < a.cfg.DedupWindow {
			a.mu.Unlock()
			continue
		}
		a.contentSeen[contentKey] = now

		a.recent = append(a.recent, m)
		if len(a.recent) > recentWindowSize {
			a.recent = a.recent[len(a.recent)-recentWindowSize:]
		}
		recent := make([]chat.Message, len(a.recent))
		copy(recent, a.recent)
		a.mu.Unlock()

		seenBatch = append(seenBatch, database.SeenMessage{Key: key, Username: m.Username})

		persisted, err := a.store.IsSeen(ctx, key)
		if err != nil {
			a.logger.Warn("Seen-message lookup failed", "key", key, "error", err)
		}
		if persisted {
			continue
		}

		if a.handler == nil {
			continue
		}
		reply, handled := a.handler(ctx, m, recent)
		if !handled || reply == "" {
			continue
		}
		if err := a.client.Send(ctx, a.room, reply); err != nil {
			a.logger.Error("Failed to send reply", "error", err, "trigger_user", m.Username)
		}
	}

	if len(seenBatch) > 0 {
		if err := a.store.MarkSeen(ctx, seenBatch); err != nil {
			a.logger.Warn("Failed to persist seen messages", "count", len(seenBatch), "error", err)
		}
	}
}

// SweepCaches clears expired content-window entries. Scheduled periodically.
func (a *Agent) SweepCaches() {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now()
	for k, last := range a.contentSeen {
		if now.Sub(last) >= a.cfg.DedupWindow {
			delete(a.contentSeen, k)
		}
	}
}

func (a *Agent) backoffDelay(retries int) time.Duration {
	delay := a.cfg.PollInterval
	for i := 1; i < retries; i++ {
		delay *= 2
		if delay >= a.cfg.MaxBackoff {
			return a.cfg.MaxBackoff
		}
	}
	if delay > a.cfg.MaxBackoff {
		delay = a.cfg.MaxBackoff
	}
	return delay
}

func (a *Agent) farewell() {
	if a.cfg.FarewellMessage == "" {
		return
	}
	// The run context is already cancelled; give the farewell its own
	// short deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.client.Send(ctx, a.room, a.cfg.FarewellMessage); err != nil {
		a.logger.Warn("Failed to send farewell message", "error", err)
	} else {
		a.logger.Info("Farewell message sent")
	}
}

// dedupKey synthesizes a message identity for the processed cache: the
// server key plus sender and a content prefix, so timestamp collisions
// between different messages do not suppress processing.
func dedupKey(m chat.Message) string {
	prefix := m.Message
	if len(prefix) > 16 {
		prefix = prefix[:16]
	}
	return m.Username + "-" + m.Key() + "-" + prefix
}

// sleepCtx sleeps for d or until ctx is done; it reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
