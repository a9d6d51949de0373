package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steplotto",
		Subsystem: "consumer",
		Name:      "messages_processed_total",
		Help:      "Number of Kafka messages successfully handled.",
	}, []string{"topic"})

	handlerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steplotto",
		Subsystem: "consumer",
		Name:      "handler_errors_total",
		Help:      "Number of messages whose handler failed after every retry.",
	}, []string{"topic"})

	rejectedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steplotto",
		Subsystem: "consumer",
		Name:      "messages_rejected_total",
		Help:      "Number of well-formed messages committed without being applied.",
	}, []string{"topic"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steplotto",
		Subsystem: "consumer",
		Name:      "decode_errors_total",
		Help:      "Number of decode failures per topic.",
	}, []string{"topic"})

	lastMessageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "steplotto",
		Subsystem: "consumer",
		Name:      "last_message_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successfully processed message per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(processedCounter, handlerErrorCounter, rejectedCounter, decodeErrorCounter, lastMessageGauge)
}

func recordProcessed(msg Message) {
	processedCounter.WithLabelValues(msg.Topic).Inc()
	RecordLag(msg.Topic, msg.Timestamp)
}

func recordHandlerError(msg Message) {
	handlerErrorCounter.WithLabelValues(msg.Topic).Inc()
}

func recordRejected(msg Message) {
	rejectedCounter.WithLabelValues(msg.Topic).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}

// RecordLag sets the last-message gauge for topic.
func RecordLag(topic string, ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastMessageGauge.WithLabelValues(topic).Set(float64(ts.Unix()))
}
