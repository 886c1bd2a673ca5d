// Package widget implements the ROFLFaucet chat widget core: the polling
// loop, per-room message stores with bounded retention, the room/tab state
// machine, the notification inbox, and the slash-command interpreter. The
// UI surface is abstracted behind Renderer and InboxView so the same engine
// drives the full-page and sidebar variants.
package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roflfaucet/roflchat/internal/balance"
	"github.com/roflfaucet/roflchat/internal/chat"
)

// ConnState is the widget's connection state. Transitions:
// Disconnected -> Connecting on Run, Connecting/Disconnected -> Polling on a
// successful poll, any -> Disconnected on a failed poll, any -> Stopped on
// Close. Stopped is terminal.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StatePolling
	StateStopped
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const (
	defaultPollInterval = 3 * time.Second
	defaultStaggerDelay = 200 * time.Millisecond
)

// Deps are the explicitly injected collaborators of a ChatWidget. Chat and
// Renderer are required; Balance and Inbox are optional (guest sessions have
// no inbox, the sidebar variant has no notifications tab).
type Deps struct {
	Logger   *slog.Logger
	Chat     *chat.Client
	Balance  *balance.Client
	Renderer Renderer
	Inbox    *Inbox

	// PollInterval defaults to 3s; the interval is fixed, with no backoff
	// on failure.
	PollInterval time.Duration
	// StaggerDelay spaces out message insertion after the initial load to
	// animate arrival. Defaults to 200ms; negative disables the delay.
	StaggerDelay time.Duration
}

// ChatWidget is the composition of transport, stores, rooms, inbox, and
// balance display. All state is guarded by a mutex; the poll loop and user
// actions are the only mutators.
type ChatWidget struct {
	logger   *slog.Logger
	client   *chat.Client
	bal      *balance.Client
	renderer Renderer
	inbox    *Inbox

	pollInterval time.Duration
	staggerDelay time.Duration

	mu          sync.Mutex
	rooms       *roomSet
	cursor      float64
	state       ConnState
	initialLoad bool
	closed      bool
}

// New creates a widget from its dependencies. The notifications tab is
// present exactly when an Inbox is supplied.
func New(deps Deps) (*ChatWidget, error) {
	if deps.Chat == nil {
		return nil, fmt.Errorf("chat client is required")
	}
	if deps.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pollInterval := deps.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	staggerDelay := deps.StaggerDelay
	if staggerDelay == 0 {
		staggerDelay = defaultStaggerDelay
	}

	w := &ChatWidget{
		logger:       logger.With("component", "chat_widget"),
		client:       deps.Chat,
		bal:          deps.Balance,
		renderer:     deps.Renderer,
		inbox:        deps.Inbox,
		pollInterval: pollInterval,
		staggerDelay: staggerDelay,
		rooms:        newRoomSet(deps.Inbox != nil),
		state:        StateDisconnected,
		initialLoad:  true,
	}
	return w, nil
}

// State returns the current connection state.
func (w *ChatWidget) State() ConnState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Cursor returns the current high-water-mark poll cursor.
func (w *ChatWidget) Cursor() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cursor
}

// Run starts the fixed-interval poll loop and blocks until the context is
// cancelled or the widget is closed. The first poll performs the initial
// batch load. Poll failures mark the widget disconnected and are retried on
// the next tick, never fatally.
func (w *ChatWidget) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.state == StateStopped {
		w.mu.Unlock()
		return fmt.Errorf("widget is stopped")
	}
	w.state = StateConnecting
	w.mu.Unlock()

	w.RefreshBalance(ctx)
	w.PollOnce(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Close()
			return nil
		case <-ticker.C:
			if w.State() == StateStopped {
				return nil
			}
			w.PollOnce(ctx)
		}
	}
}

// PollOnce performs a single poll cycle: fetch, cursor advance, ingest,
// render, unread bookkeeping, tip-triggered balance refresh, retention
// sweep. Results arriving after Close are ignored.
func (w *ChatWidget) PollOnce(ctx context.Context) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	since := w.cursor
	w.mu.Unlock()

	res, err := w.client.Poll(ctx, since)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		// Teardown raced an in-flight poll; drop the result.
		return
	}

	if err != nil {
		w.state = StateDisconnected
		w.renderer.SetStatus(StatusDisconnected)
		w.logger.Warn("Poll failed, retrying on next tick", "error", err)
		return
	}

	w.state = StatePolling
	w.renderer.SetStatus(StatusConnected)
	w.renderer.SetOnlineCount(res.OnlineCount)
	w.cursor = chat.NextCursor(w.cursor, res)

	initial := w.initialLoad
	w.initialLoad = false

	sawTip := false
	byRoom := make(map[*roomState][]chat.Message)
	for _, m := range res.Messages {
		r := w.rooms.resolve(m.Room)
		byRoom[r] = append(byRoom[r], m)
		if m.IsTipShaped() {
			sawTip = true
		}
	}

	for r, msgs := range byRoom {
		accepted := r.store.Ingest(msgs)
		if len(accepted) == 0 {
			continue
		}
		active := r.id == w.rooms.active

		for i, m := range accepted {
			if !initial && i > 0 && w.staggerDelay > 0 {
				time.Sleep(w.staggerDelay)
			}
			w.renderer.AppendMessage(r.id, RenderMessage(m))
			if active && !initial {
				w.renderer.ScrollToBottom(r.id)
			}
		}
		if initial && active {
			// Initial batch scrolls once, after all insertions.
			w.renderer.ScrollToBottom(r.id)
		}

		if !active {
			r.unread += len(accepted)
			w.renderer.SetUnread(r.id, r.unread)
		}

		if evicted := r.store.Cleanup(); len(evicted) > 0 {
			w.renderer.RemoveMessages(r.id, evicted)
		}
	}

	if sawTip {
		// Defensive refresh: a tip may have changed our balance.
		w.refreshBalanceLocked(ctx)
	}
}

// SendMessage runs user input through the command interpreter and either
// displays a local system message or forwards the text to the server. The
// server echoes accepted messages back through the poll stream.
func (w *ChatWidget) SendMessage(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	outcome, err := interpretCommand(ctx, w.bal, text)
	if err != nil {
		w.systemMessage(fmt.Sprintf("Command failed: %v", err))
		return err
	}

	if outcome.localEcho != "" {
		w.systemMessage(outcome.localEcho)
	}
	if !outcome.forward {
		return nil
	}

	room := w.composeRoom()
	if err := w.client.Send(ctx, room, text); err != nil {
		if errors.Is(err, chat.ErrReadOnly) {
			w.systemMessage("Log in to chat.")
			return err
		}
		var apiErr *chat.APIError
		if errors.As(err, &apiErr) {
			w.systemMessage(apiErr.Message)
		} else {
			w.systemMessage("Message not sent, check your connection.")
		}
		return err
	}

	if w.bal != nil && (strings.HasPrefix(text, "/tip ") || strings.HasPrefix(text, "/rain ")) {
		// Server-side mutation may have changed the balance.
		w.RefreshBalance(ctx)
	}
	return nil
}

// ActivateRoom switches the active tab. Entering a room clears its unread
// counter; entering notifications hides the compose input (hidden, not
// removed) and refreshes the inbox.
func (w *ChatWidget) ActivateRoom(ctx context.Context, id string) error {
	w.mu.Lock()
	r, ok := w.rooms.activate(id)
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("unknown room %q", id)
	}

	w.renderer.ShowRoom(r.id)
	w.renderer.SetUnread(r.id, 0)
	w.renderer.SetComposeVisible(r.id != RoomNotifications)
	inbox := w.inbox
	w.mu.Unlock()

	if id == RoomNotifications && inbox != nil {
		if err := inbox.Refresh(ctx); err != nil {
			w.logger.Warn("Inbox refresh on tab switch failed", "error", err)
		}
	}
	return nil
}

// OpenDeepLink handles documented location hashes. "#inbox" activates the
// notifications tab; other hashes are ignored.
func (w *ChatWidget) OpenDeepLink(ctx context.Context, hash string) error {
	if hash == DeepLinkInbox && w.inbox != nil {
		return w.ActivateRoom(ctx, RoomNotifications)
	}
	return nil
}

// ActiveRoom returns the id of the active room.
func (w *ChatWidget) ActiveRoom() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rooms.active
}

// Unread returns the unread counter for a room.
func (w *ChatWidget) Unread(id string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if r, ok := w.rooms.get(id); ok {
		return r.unread
	}
	return 0
}

// RoomMessageCount returns the number of retained messages in a room.
func (w *ChatWidget) RoomMessageCount(id string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if r, ok := w.rooms.get(id); ok {
		return r.store.Len()
	}
	return 0
}

// RefreshBalance re-reads the balance and updates the display. Failures are
// logged, not fatal.
func (w *ChatWidget) RefreshBalance(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.refreshBalanceLocked(ctx)
}

func (w *ChatWidget) refreshBalanceLocked(ctx context.Context) {
	if w.bal == nil {
		return
	}
	v, err := w.bal.Get(ctx)
	if err != nil {
		w.logger.Warn("Balance refresh failed", "error", err)
		return
	}
	w.renderer.SetBalance(v)
}

// Close stops the widget. Only the next scheduled tick is suppressed; an
// in-flight poll completes and its result is discarded.
func (w *ChatWidget) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.state = StateStopped
}

// systemMessage displays a local-only system line in the compose room. It
// bypasses the message store so synthetic timestamps cannot collide with
// server identities.
func (w *ChatWidget) systemMessage(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	room := w.composeRoomLocked()
	w.renderer.AppendMessage(room, RenderMessage(chat.Message{
		Username:  "system",
		Message:   text,
		Type:      chat.TypeSystem,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
	}))
	w.renderer.ScrollToBottom(room)
}

func (w *ChatWidget) composeRoom() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.composeRoomLocked()
}

func (w *ChatWidget) composeRoomLocked() string {
	if w.rooms.active == RoomNotifications {
		return RoomGeneral
	}
	return w.rooms.active
}
