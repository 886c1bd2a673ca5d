package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/roflfaucet/roflchat/internal/chat"
)

func TestAnzarHandler(t *testing.T) {
	t.Parallel()

	handler := NewAnzarHandler("Anzar", discardLogger())

	testCases := []struct {
		name        string
		msg         chat.Message
		wantHandled bool
		wantPart    string
	}{
		{
			name:        "greets join announcements",
			msg:         chat.Message{Username: "system", Message: "carol joined the chat", Type: chat.TypeSystem},
			wantHandled: true,
			wantPart:    "carol",
		},
		{
			name:        "acknowledges thanks",
			msg:         chat.Message{Username: "bob", Message: "thanks Anzar for the rain!", Type: chat.TypeMessage},
			wantHandled: true,
			wantPart:    "bob",
		},
		{
			name: "ignores ordinary chatter",
			msg:  chat.Message{Username: "bob", Message: "anyone playing slots?", Type: chat.TypeMessage},
		},
		{
			name: "ignores thanks aimed elsewhere",
			msg:  chat.Message{Username: "bob", Message: "thanks carol!", Type: chat.TypeMessage},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			reply, handled := handler(context.Background(), tc.msg, nil)
			if handled != tc.wantHandled {
				t.Fatalf("handled = %v, want %v (reply %q)", handled, tc.wantHandled, reply)
			}
			if tc.wantPart != "" && !strings.Contains(reply, tc.wantPart) {
				t.Errorf("reply %q missing %q", reply, tc.wantPart)
			}
		})
	}
}

// fakeAI implements gemini.Client.
type fakeAI struct {
	reply string
	err   error
	calls int
}

func (f *fakeAI) GenerateReply(ctx context.Context, messages []chat.Message, botName string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func TestROFLBotHandlerIgnoresUnrelatedMessages(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{reply: "hello!"}
	handler := NewROFLBotHandler("ROFLBot", ai, discardLogger())

	msg := chat.Message{Username: "bob", Message: "big win on slots", Type: chat.TypeMessage}
	if _, handled := handler(context.Background(), msg, nil); handled {
		t.Errorf("handler replied without a mention")
	}
	if ai.calls != 0 {
		t.Errorf("AI called %d times without a mention", ai.calls)
	}

	system := chat.Message{Username: "system", Message: "roflbot joined the chat", Type: chat.TypeSystem}
	if _, handled := handler(context.Background(), system, nil); handled {
		t.Errorf("handler replied to a system message")
	}
}

func TestROFLBotHandlerUsesAIReply(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{reply: "Lady luck smiles on you, bob!"}
	handler := NewROFLBotHandler("ROFLBot", ai, discardLogger())

	msg := chat.Message{Username: "bob", Message: "hey @roflbot tell me a joke", Type: chat.TypeMessage}
	reply, handled := handler(context.Background(), msg, []chat.Message{msg})
	if !handled {
		t.Fatalf("mention not handled")
	}
	if !strings.HasPrefix(reply, "@bob ") {
		t.Errorf("reply %q not addressed to the asker", reply)
	}
	if !strings.Contains(reply, "Lady luck") {
		t.Errorf("reply %q does not carry the AI text", reply)
	}
}

func TestROFLBotHandlerFallsBackToCanned(t *testing.T) {
	t.Parallel()

	msg := chat.Message{Username: "bob", Message: "roflbot you there?", Type: chat.TypeMessage}

	// Without an AI client.
	handler := NewROFLBotHandler("ROFLBot", nil, discardLogger())
	reply, handled := handler(context.Background(), msg, nil)
	if !handled || !strings.HasPrefix(reply, "@bob ") {
		t.Errorf("canned fallback = %q handled=%v", reply, handled)
	}

	// With a failing AI client.
	ai := &fakeAI{err: errors.New("quota exceeded")}
	handler = NewROFLBotHandler("ROFLBot", ai, discardLogger())
	reply, handled = handler(context.Background(), msg, nil)
	if !handled || reply == "" {
		t.Errorf("failing AI did not fall back: %q handled=%v", reply, handled)
	}
	if ai.calls != 1 {
		t.Errorf("AI called %d times, want 1", ai.calls)
	}
}
