package widget

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/roflfaucet/roflchat/internal/balance"
)

func balanceClientAt(t *testing.T, amount float64) *balance.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "balance": amount})
	}))
	t.Cleanup(srv.Close)

	c, err := balance.NewMemberClient(srv.URL, "u-1", 0, nil)
	if err != nil {
		t.Fatalf("NewMemberClient failed: %v", err)
	}
	return c
}

func TestInterpretCommand(t *testing.T) {
	t.Parallel()

	bal := balanceClientAt(t, 50)

	testCases := []struct {
		name        string
		input       string
		wantForward bool
		wantEcho    string
	}{
		{
			name:        "plain text forwards",
			input:       "good luck all",
			wantForward: true,
		},
		{
			name:     "balance resolves locally",
			input:    "/balance",
			wantEcho: "Your balance: 50 coins",
		},
		{
			name:     "tip wrong arity",
			input:    "/tip bob",
			wantEcho: "Usage: /tip <user> <amount>",
		},
		{
			name:     "tip non-numeric amount",
			input:    "/tip bob lots",
			wantEcho: "Tip amount must be a positive number.",
		},
		{
			name:     "tip negative amount",
			input:    "/tip bob -5",
			wantEcho: "Tip amount must be a positive number.",
		},
		{
			name:     "tip exceeding balance blocked locally",
			input:    "/tip bob 51",
			wantEcho: "Insufficient balance for that tip.",
		},
		{
			name:        "tip within balance forwards",
			input:       "/tip bob 50",
			wantForward: true,
		},
		{
			name:     "rain wrong arity",
			input:    "/rain",
			wantEcho: "Usage: /rain <amount>",
		},
		{
			name:     "rain below minimum",
			input:    "/rain 5",
			wantEcho: "Rain minimum is 10 coins.",
		},
		{
			name:        "rain at minimum forwards",
			input:       "/rain 10",
			wantForward: true,
		},
		{
			name:        "unknown command forwards",
			input:       "/online",
			wantForward: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			outcome, err := interpretCommand(context.Background(), bal, tc.input)
			if err != nil {
				t.Fatalf("interpretCommand(%q) failed: %v", tc.input, err)
			}
			if outcome.forward != tc.wantForward {
				t.Errorf("forward = %v, want %v", outcome.forward, tc.wantForward)
			}
			if tc.wantEcho != "" && !strings.Contains(outcome.localEcho, tc.wantEcho) {
				t.Errorf("echo = %q, want %q", outcome.localEcho, tc.wantEcho)
			}
			if tc.wantEcho == "" && outcome.localEcho != "" {
				t.Errorf("unexpected echo %q", outcome.localEcho)
			}
		})
	}
}

func TestInterpretCommandWithoutBalance(t *testing.T) {
	t.Parallel()

	outcome, err := interpretCommand(context.Background(), nil, "/balance")
	if err != nil {
		t.Fatalf("interpretCommand failed: %v", err)
	}
	if outcome.forward || outcome.localEcho != "Balance is not available." {
		t.Errorf("outcome = %+v", outcome)
	}

	// Without a local balance system, tips pass straight through to the
	// server's own checks.
	outcome, err = interpretCommand(context.Background(), nil, "/tip bob 999999")
	if err != nil {
		t.Fatalf("interpretCommand failed: %v", err)
	}
	if !outcome.forward {
		t.Errorf("tip without local balance not forwarded")
	}
}
