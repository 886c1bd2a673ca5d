package bot

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/roflfaucet/roflchat/internal/chat"
)

var anzarGreetings = []string{
	"Welcome to the party, %s!",
	"Hey %s, good to see you!",
	"%s has entered the arena!",
}

var anzarThanks = []string{
	"You're welcome, %s! Stay lucky!",
	"Anytime, %s. The rain falls for everyone!",
}

// NewAnzarHandler returns the trigger handler for the Anzar rain bot. Anzar
// greets users the server announces as joined and acknowledges thanks aimed
// at it; the actual raining is driven by the scheduler, not by chat triggers.
func NewAnzarHandler(botName string, logger *slog.Logger) MessageHandler {
	log := logger.With("component", "anzar_handler")
	lowerName := strings.ToLower(botName)

	return func(ctx context.Context, m chat.Message, recent []chat.Message) (string, bool) {
		text := strings.ToLower(m.Message)

		if m.Type == chat.TypeSystem && strings.Contains(text, "joined") {
			log.Debug("Greeting new arrival", "username", m.Username)
			return fmt.Sprintf(pick(anzarGreetings), joinedUsername(m)), true
		}

		if strings.Contains(text, lowerName) && (strings.Contains(text, "thank") || strings.Contains(text, "thx")) {
			return fmt.Sprintf(pick(anzarThanks), m.Username), true
		}

		return "", false
	}
}

// joinedUsername extracts the subject of a join announcement. Join messages
// arrive as system messages ("alice joined the chat"); the first word is the
// username.
func joinedUsername(m chat.Message) string {
	fields := strings.Fields(m.Message)
	if len(fields) > 0 {
		return fields[0]
	}
	return m.Username
}

func pick(options []string) string {
	return options[rand.IntN(len(options))]
}
