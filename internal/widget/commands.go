package widget

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/roflfaucet/roflchat/internal/balance"
)

// Minimum amount accepted for a /rain command when a local balance system
// is present. The server enforces its own bounds either way.
const rainMinimum = 10

// commandOutcome is what the interpreter decided to do with an input line.
type commandOutcome struct {
	// localEcho, when non-empty, is displayed as a local system message.
	localEcho string
	// forward, when true, sends the literal input text as a chat message.
	forward bool
}

// interpretCommand parses a line of user input. Lines not starting with "/"
// and unrecognized commands are forwarded verbatim; /balance resolves
// entirely client-side; /tip and /rain are shape-checked locally and then
// delegated to the server for the actual mutation and broadcast.
func interpretCommand(ctx context.Context, bal *balance.Client, text string) (commandOutcome, error) {
	if !strings.HasPrefix(text, "/") {
		return commandOutcome{forward: true}, nil
	}

	fields := strings.Fields(text)
	switch fields[0] {
	case "/balance":
		if bal == nil {
			return commandOutcome{localEcho: "Balance is not available."}, nil
		}
		v, err := bal.Get(ctx)
		if err != nil {
			return commandOutcome{}, fmt.Errorf("balance lookup failed: %w", err)
		}
		return commandOutcome{localEcho: fmt.Sprintf("Your balance: %s coins", formatAmount(v))}, nil

	case "/tip":
		if len(fields) != 3 {
			return commandOutcome{localEcho: "Usage: /tip <user> <amount>"}, nil
		}
		amount, err := strconv.ParseFloat(fields[2], 64)
		if err != nil || amount <= 0 {
			return commandOutcome{localEcho: "Tip amount must be a positive number."}, nil
		}
		if bal != nil {
			current, err := bal.Get(ctx)
			if err == nil && amount > current {
				return commandOutcome{localEcho: "Insufficient balance for that tip."}, nil
			}
		}
		// Server performs the transfer and the chat broadcast.
		return commandOutcome{forward: true}, nil

	case "/rain":
		if len(fields) != 2 {
			return commandOutcome{localEcho: "Usage: /rain <amount>"}, nil
		}
		amount, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || amount <= 0 {
			return commandOutcome{localEcho: "Rain amount must be a positive number."}, nil
		}
		if bal != nil && amount < rainMinimum {
			return commandOutcome{localEcho: fmt.Sprintf("Rain minimum is %d coins.", rainMinimum)}, nil
		}
		return commandOutcome{forward: true}, nil

	default:
		// Unrecognized command: the server may interpret it (e.g. /online)
		// or ignore it.
		return commandOutcome{forward: true}, nil
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
