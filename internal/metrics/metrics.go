// Package metrics exposes prometheus counters for the chat protocol paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollsTotal counts chat poll requests issued.
	PollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roflchat_polls_total",
		Help: "Total number of chat poll requests issued.",
	})

	// PollFailuresTotal counts chat poll requests that failed at transport level.
	PollFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roflchat_poll_failures_total",
		Help: "Total number of chat poll requests that failed.",
	})

	// MessagesIngestedTotal counts messages accepted by a message store after dedup.
	MessagesIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roflchat_messages_ingested_total",
		Help: "Total number of messages ingested after deduplication.",
	})

	// SendsTotal counts chat messages sent.
	SendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roflchat_sends_total",
		Help: "Total number of chat messages sent.",
	})

	// SendFailuresTotal counts chat sends that failed.
	SendFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roflchat_send_failures_total",
		Help: "Total number of chat sends that failed.",
	})
)
