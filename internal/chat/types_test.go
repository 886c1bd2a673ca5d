package chat_test

import (
	"testing"

	"github.com/roflfaucet/roflchat/internal/chat"
)

func TestMessageKey(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		msg      chat.Message
		expected string
	}{
		{
			name:     "server-assigned id wins",
			msg:      chat.Message{ID: 42, Timestamp: 1717000000.123},
			expected: "id:42",
		},
		{
			name:     "timestamp identity without id",
			msg:      chat.Message{Timestamp: 1717000000.123},
			expected: "1717000000.123",
		},
		{
			name:     "fractional precision preserved",
			msg:      chat.Message{Timestamp: 1717000000.000123},
			expected: "1717000000.000123",
		},
		{
			name:     "zero timestamp",
			msg:      chat.Message{},
			expected: "0",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.msg.Key(); got != tc.expected {
				t.Errorf("Key() = %q, want %q", got, tc.expected)
			}
		})
	}
}

func TestIsTipShaped(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		msgType  chat.MessageType
		expected bool
	}{
		{name: "tip", msgType: chat.TypeTip, expected: true},
		{name: "rain", msgType: chat.TypeRain, expected: true},
		{name: "plain message", msgType: chat.TypeMessage, expected: false},
		{name: "system", msgType: chat.TypeSystem, expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := chat.Message{Type: tc.msgType}
			if got := m.IsTipShaped(); got != tc.expected {
				t.Errorf("IsTipShaped() = %v, want %v", got, tc.expected)
			}
		})
	}
}
