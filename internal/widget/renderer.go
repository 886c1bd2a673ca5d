package widget

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/roflfaucet/roflchat/internal/chat"
)

// Status is the connection status string surfaced to the user.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected, retrying..."
)

// RenderedMessage is a message prepared for display: identity key, sender,
// and an HTML fragment with text already escaped and enriched.
type RenderedMessage struct {
	Key       string
	Username  string
	Type      chat.MessageType
	Timestamp float64
	HTML      string
}

// Renderer is the UI surface the widget draws on. Implementations bind it to
// a DOM, a terminal, or a test recorder. All calls happen from the widget's
// poll loop or from user-action methods, never concurrently.
type Renderer interface {
	AppendMessage(room string, m RenderedMessage)
	RemoveMessages(room string, keys []string)
	ScrollToBottom(room string)
	SetStatus(status Status)
	SetUnread(room string, count int)
	SetComposeVisible(visible bool)
	ShowRoom(room string)
	SetOnlineCount(n int)
	SetBalance(v float64)
}

// imageURLPattern matches bare image URLs, optionally with a query string.
var imageURLPattern = regexp.MustCompile(`(?i)\bhttps?://\S+\.(?:gif|jpe?g|png|webp)(?:\?\S*)?`)

// RenderMessage escapes a message's text and applies the two controlled
// enrichments: the sender's own username, case-insensitively matched in the
// body, is wrapped in a highlight span, and bare image URLs are additionally
// rendered as inline <img> elements after the escaped text. Both enrichments
// apply simultaneously.
func RenderMessage(m chat.Message) RenderedMessage {
	escaped := html.EscapeString(m.Message)

	if m.Username != "" {
		escaped = highlightUsername(escaped, html.EscapeString(m.Username))
	}

	var sb strings.Builder
	sb.WriteString(escaped)
	for _, u := range imageURLPattern.FindAllString(m.Message, -1) {
		sb.WriteString(fmt.Sprintf(`<img src="%s" alt="" loading="lazy">`, html.EscapeString(u)))
	}

	return RenderedMessage{
		Key:       m.Key(),
		Username:  m.Username,
		Type:      m.Type,
		Timestamp: m.Timestamp,
		HTML:      sb.String(),
	}
}

// highlightUsername wraps case-insensitive occurrences of username in a
// highlight span. The input is already escaped, so the match operates on
// escaped text with an escaped needle.
func highlightUsername(escaped, username string) string {
	pattern, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(username))
	if err != nil {
		return escaped
	}
	return pattern.ReplaceAllStringFunc(escaped, func(match string) string {
		return `<span class="chat-self-mention">` + match + `</span>`
	})
}
