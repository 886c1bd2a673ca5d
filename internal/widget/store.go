package widget

import (
	"time"

	"github.com/roflfaucet/roflchat/internal/chat"
	"github.com/roflfaucet/roflchat/internal/metrics"
)

// Retention defaults. Applied per room, independent of server-side storage:
// eviction removes entries from the view only.
const (
	defaultMinMessages      = 50
	defaultCleanupThreshold = 200
	defaultMaxMessages      = 100
	defaultMessageAgeLimit  = 2 * time.Hour
	defaultCleanupInterval  = 5 * time.Minute

	// Age-based eviction keeps this many entries above the floor as buffer.
	ageEvictionBuffer = 20
)

type storedMessage struct {
	msg        chat.Message
	ingestedAt time.Time
}

// MessageStore maintains a bounded, duplicate-free, time-ordered view of one
// room's messages. Ingestion is idempotent: a message whose identity key is
// already present is dropped.
type MessageStore struct {
	entries []storedMessage
	seen    map[string]struct{}

	minMessages      int
	cleanupThreshold int
	maxMessages      int
	messageAgeLimit  time.Duration
	cleanupInterval  time.Duration

	lastCleanup time.Time
	now         func() time.Time
}

// NewMessageStore creates a store with the default retention policy.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		seen:             make(map[string]struct{}),
		minMessages:      defaultMinMessages,
		cleanupThreshold: defaultCleanupThreshold,
		maxMessages:      defaultMaxMessages,
		messageAgeLimit:  defaultMessageAgeLimit,
		cleanupInterval:  defaultCleanupInterval,
		now:              time.Now,
	}
}

// Ingest adds the given messages, dropping any whose key is already present.
// It returns the messages actually accepted, in input order.
func (s *MessageStore) Ingest(messages []chat.Message) []chat.Message {
	var accepted []chat.Message
	now := s.now()
	for _, m := range messages {
		key := m.Key()
		if _, dup := s.seen[key]; dup {
			continue
		}
		s.seen[key] = struct{}{}
		s.entries = append(s.entries, storedMessage{msg: m, ingestedAt: now})
		accepted = append(accepted, m)
		metrics.MessagesIngestedTotal.Inc()
	}
	return accepted
}

// Len returns the number of retained messages.
func (s *MessageStore) Len() int { return len(s.entries) }

// Messages returns the retained messages in ingestion order.
func (s *MessageStore) Messages() []chat.Message {
	out := make([]chat.Message, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.msg
	}
	return out
}

// Contains reports whether a message with the given key is retained.
// Evicted keys are forgotten, so a very old message re-delivered after
// eviction is ingested again, matching the DOM-check dedup of the original.
func (s *MessageStore) Contains(key string) bool {
	_, ok := s.seen[key]
	return ok
}

// Cleanup applies the retention policy and returns the keys of evicted
// messages. It never evicts below the floor, starts only above the cleanup
// threshold, and is throttled to run at most once per cleanup interval.
func (s *MessageStore) Cleanup() []string {
	now := s.now()
	if !s.lastCleanup.IsZero() && now.Sub(s.lastCleanup) < s.cleanupInterval {
		return nil
	}
	if len(s.entries) <= s.cleanupThreshold {
		return nil
	}
	s.lastCleanup = now

	var evicted []string

	// Age pass: drop entries older than the age limit, keeping a buffer
	// above the floor.
	cutoff := now.Add(-s.messageAgeLimit)
	for len(s.entries) > s.minMessages+ageEvictionBuffer {
		oldest := s.entries[0]
		if !oldest.ingestedAt.Before(cutoff) {
			break
		}
		evicted = append(evicted, oldest.msg.Key())
		s.dropOldest()
	}

	// Count pass: trim down to the target size, never below the floor.
	for len(s.entries) > s.maxMessages && len(s.entries) > s.minMessages {
		evicted = append(evicted, s.entries[0].msg.Key())
		s.dropOldest()
	}

	return evicted
}

func (s *MessageStore) dropOldest() {
	delete(s.seen, s.entries[0].msg.Key())
	s.entries = s.entries[1:]
}
