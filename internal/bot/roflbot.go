package bot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/roflfaucet/roflchat/internal/chat"
	"github.com/roflfaucet/roflchat/internal/gemini"
)

var roflbotCanned = []string{
	"Ha! Good one. Keep the chat rolling!",
	"I'd answer that, but my brain module is out for repairs.",
	"Spin the wheel, not my circuits!",
	"That's above my pay grade, and I work for free coins.",
}

// NewROFLBotHandler returns the trigger handler for ROFLBot. It responds only
// when mentioned by name. Replies come from Gemini using the recent message
// window as conversational context; when ai is nil or the call fails, a
// canned line keeps the bot responsive.
func NewROFLBotHandler(botName string, ai gemini.Client, logger *slog.Logger) MessageHandler {
	log := logger.With("component", "roflbot_handler")
	lowerName := strings.ToLower(botName)

	return func(ctx context.Context, m chat.Message, recent []chat.Message) (string, bool) {
		if m.Type != chat.TypeMessage {
			return "", false
		}
		text := strings.ToLower(m.Message)
		if !strings.Contains(text, lowerName) && !strings.Contains(text, "@"+lowerName) {
			return "", false
		}

		if ai == nil {
			return "@" + m.Username + " " + pick(roflbotCanned), true
		}

		reply, err := ai.GenerateReply(ctx, recent, botName)
		if err != nil {
			log.Warn("Gemini reply failed, using canned response", "error", err)
			return "@" + m.Username + " " + pick(roflbotCanned), true
		}

		reply = strings.TrimSpace(reply)
		if reply == "" {
			return "", false
		}
		if !strings.HasPrefix(reply, "@") {
			reply = "@" + m.Username + " " + reply
		}
		return reply, true
	}
}
