package mq

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_mq_messages_published_total",
		Help: "Messages successfully published to the broker, by routing key.",
	}, []string{"routing_key"})

	messagesConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_mq_messages_consumed_total",
		Help: "Deliveries handled successfully, by queue.",
	}, []string{"queue"})

	messageRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_mq_message_retries_total",
		Help: "Deliveries rescheduled after handler failure, by queue.",
	}, []string{"queue"})

	messagesDead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_mq_messages_dead_total",
		Help: "Deliveries dropped after exhausting their retry allowance, by queue.",
	}, []string{"queue"})
)
