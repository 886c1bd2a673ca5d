package chat

import "strconv"

// MessageType enumerates the kinds of messages the chat endpoint delivers.
type MessageType string

const (
	TypeMessage MessageType = "message"
	TypeSystem  MessageType = "system"
	TypeTip     MessageType = "tip"
	TypeRain    MessageType = "rain"
)

// Message is a single chat message as delivered by the chat endpoint.
//
// The flat-file backend identifies messages by their fractional timestamp.
// ID is a server-assigned identifier that newer backends include; it is 0
// when absent, in which case Timestamp is the only identity.
type Message struct {
	ID        int64       `json:"id,omitempty"`
	Username  string      `json:"username"`
	Message   string      `json:"message"`
	Type      MessageType `json:"type"`
	Timestamp float64     `json:"timestamp"`
	UserID    string      `json:"user_id,omitempty"`
	Room      string      `json:"room,omitempty"` // empty means general
}

// Key returns the dedup identity for the message: the server id when
// assigned, otherwise the timestamp at full float precision. Two messages
// only collide if the backend handed out identical timestamps.
func (m Message) Key() string {
	if m.ID != 0 {
		return "id:" + strconv.FormatInt(m.ID, 10)
	}
	return strconv.FormatFloat(m.Timestamp, 'f', -1, 64)
}

// IsTipShaped reports whether the message looks like a currency event that
// should trigger a defensive balance refresh.
func (m Message) IsTipShaped() bool {
	return m.Type == TypeTip || m.Type == TypeRain
}

// NotificationType enumerates the notification kinds the inbox surfaces.
type NotificationType string

const (
	NotifTip           NotificationType = "tip"
	NotifRain          NotificationType = "rain"
	NotifDirectMessage NotificationType = "direct_message"
	NotifMention       NotificationType = "mention"
)

// Notification is a per-user inbox item (tip, mention, direct message).
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	From      string           `json:"from,omitempty"`
	Timestamp float64          `json:"timestamp"`
	Replied   bool             `json:"replied"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}

// PollResult is the payload of a successful chat poll.
type PollResult struct {
	Messages         []Message
	OnlineCount      int
	CurrentTimestamp float64
}

// pollResponse mirrors the chat endpoint's GET response body.
type pollResponse struct {
	Success          bool      `json:"success"`
	Messages         []Message `json:"messages"`
	OnlineCount      int       `json:"online_count"`
	CurrentTimestamp float64   `json:"current_timestamp"`
	Error            string    `json:"error,omitempty"`
}

// sendResponse mirrors the chat endpoint's POST response body.
type sendResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Error   string `json:"error,omitempty"`
}

// notificationsResponse mirrors the notifications endpoint's GET response body.
type notificationsResponse struct {
	Success       bool           `json:"success"`
	Notifications []Notification `json:"notifications"`
	Error         string         `json:"error,omitempty"`
}

// actionResponse mirrors the notifications endpoint's POST response body.
type actionResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
