package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roflfaucet/roflchat/internal/chat"
)

// Inbox errors surfaced to the caller. None of them crash the widget; the
// UI shows them as status text.
var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrAlreadyReplied       = errors.New("notification already replied to")
	ErrNoSender             = errors.New("notification has no originating user")
	ErrNotConfirmed         = errors.New("action not confirmed")
)

// InboxView is the UI surface for notification cards. RenderList is called
// with the full card list and the active id after every state change, which
// keeps event handling on the caller's side idempotent: a single stable
// dispatcher calls Inbox.HandleAction keyed off card ids instead of binding
// per-card handlers on each render.
type InboxView interface {
	RenderList(items []chat.Notification, activeID string)
	SetStatus(status string)
}

// ConfirmFunc asks the user to confirm a destructive action.
type ConfirmFunc func(prompt string) bool

// Inbox surfaces per-user notifications with reply-once semantics. At most
// one notification is active (focused for reply) at a time.
type Inbox struct {
	client  *chat.Client
	view    InboxView
	confirm ConfirmFunc
	room    string
	logger  *slog.Logger

	items    []chat.Notification
	activeID string
}

// NewInbox creates an inbox bound to an authenticated chat client. Replies
// go to the given room through the ordinary chat send path.
func NewInbox(client *chat.Client, view InboxView, confirm ConfirmFunc, room string, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	if room == "" {
		room = RoomGeneral
	}
	return &Inbox{
		client:  client,
		view:    view,
		confirm: confirm,
		room:    room,
		logger:  logger.With("component", "inbox"),
	}
}

// Refresh reloads all notifications from the server, newest first, and
// re-selects the active notification: the first unreplied one, or the first
// overall when all are replied. An empty list renders an empty state, not
// an error.
func (in *Inbox) Refresh(ctx context.Context) error {
	items, err := in.client.Notifications(ctx)
	if err != nil {
		in.view.SetStatus("Could not load notifications")
		return fmt.Errorf("failed to load notifications: %w", err)
	}

	in.items = items
	in.activeID = ""
	for _, n := range items {
		if !n.Replied {
			in.activeID = n.ID
			break
		}
	}
	if in.activeID == "" && len(items) > 0 {
		in.activeID = items[0].ID
	}

	in.view.RenderList(in.items, in.activeID)
	return nil
}

// Items returns the current notification list.
func (in *Inbox) Items() []chat.Notification { return in.items }

// ActiveID returns the id of the active notification, or empty.
func (in *Inbox) ActiveID() string { return in.activeID }

// Activate moves reply focus to the given notification. Activation is
// disallowed for notifications without an originating user or already
// replied to.
func (in *Inbox) Activate(id string) error {
	n := in.find(id)
	if n == nil {
		return ErrNotificationNotFound
	}
	if n.From == "" {
		return ErrNoSender
	}
	if n.Replied {
		return ErrAlreadyReplied
	}

	in.activeID = id
	in.view.RenderList(in.items, in.activeID)
	return nil
}

// Reply composes "@{from} {text}" and sends it as an ordinary chat message,
// then marks the notification replied server-side. A second reply to the
// same notification is blocked client-side before any send. Failure leaves
// the notification unreplied and does not retry.
func (in *Inbox) Reply(ctx context.Context, id, text string) error {
	n := in.find(id)
	if n == nil {
		return ErrNotificationNotFound
	}
	if n.From == "" {
		return ErrNoSender
	}
	if n.Replied {
		return ErrAlreadyReplied
	}
	if text == "" {
		return fmt.Errorf("reply text is empty")
	}

	msg := fmt.Sprintf("@%s %s", n.From, text)
	if err := in.client.Send(ctx, in.room, msg); err != nil {
		in.view.SetStatus("Reply failed, try again")
		return fmt.Errorf("failed to send reply: %w", err)
	}

	if err := in.client.NotificationAction(ctx, "mark_replied", id); err != nil {
		// The chat message went out; log the bookkeeping failure but keep
		// the local replied flag so the client-side reply-once guard holds.
		in.logger.WarnContext(ctx, "Failed to mark notification replied on server", "notification_id", id, "error", err)
	}

	n.Replied = true
	in.view.RenderList(in.items, in.activeID)
	return nil
}

// Dismiss permanently removes a notification after explicit confirmation.
func (in *Inbox) Dismiss(ctx context.Context, id string) error {
	if in.find(id) == nil {
		return ErrNotificationNotFound
	}
	if in.confirm != nil && !in.confirm("Dismiss this notification? This cannot be undone.") {
		return ErrNotConfirmed
	}

	if err := in.client.NotificationAction(ctx, "dismiss", id); err != nil {
		in.view.SetStatus("Dismiss failed")
		return fmt.Errorf("failed to dismiss notification: %w", err)
	}

	in.remove(id)
	in.view.RenderList(in.items, in.activeID)
	return nil
}

// ClearAll permanently removes every notification after explicit confirmation.
func (in *Inbox) ClearAll(ctx context.Context) error {
	if in.confirm != nil && !in.confirm("Clear all notifications? This cannot be undone.") {
		return ErrNotConfirmed
	}

	if err := in.client.NotificationAction(ctx, "clear_all", ""); err != nil {
		in.view.SetStatus("Clear all failed")
		return fmt.Errorf("failed to clear notifications: %w", err)
	}

	in.items = nil
	in.activeID = ""
	in.view.RenderList(in.items, in.activeID)
	return nil
}

// HandleAction is the single dispatch entry point for card actions, keyed
// off the notification id carried by the card (the delegation pattern: one
// handler on a stable container instead of per-card bindings).
func (in *Inbox) HandleAction(ctx context.Context, action, id string) error {
	switch action {
	case "activate":
		return in.Activate(id)
	case "dismiss":
		return in.Dismiss(ctx, id)
	case "clear_all":
		return in.ClearAll(ctx)
	default:
		return fmt.Errorf("unknown inbox action %q", action)
	}
}

func (in *Inbox) find(id string) *chat.Notification {
	for i := range in.items {
		if in.items[i].ID == id {
			return &in.items[i]
		}
	}
	return nil
}

func (in *Inbox) remove(id string) {
	for i := range in.items {
		if in.items[i].ID == id {
			in.items = append(in.items[:i], in.items[i+1:]...)
			break
		}
	}
	if in.activeID == id {
		in.activeID = ""
		for _, n := range in.items {
			if !n.Replied {
				in.activeID = n.ID
				break
			}
		}
		if in.activeID == "" && len(in.items) > 0 {
			in.activeID = in.items[0].ID
		}
	}
}
