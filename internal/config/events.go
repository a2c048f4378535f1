package config

import "time"

// EventsConfig controls publishing of booking events to RabbitMQ and the
// consumer that appends them to a log file.
type EventsConfig struct {
	Enabled     bool
	URL         string
	DialTimeout time.Duration
	Consume     bool
	LogPath     string
}

// LoadEventsConfig reads RABBITMQ_URL (or AMQP_URL) and the EVENTS_* variables.
// Events are disabled when no broker URL is configured.
func LoadEventsConfig() EventsConfig {
	url := envStr("RABBITMQ_URL", envStr("AMQP_URL", ""))
	return EventsConfig{
		Enabled:     envBool("EVENTS_ENABLED", url != "") && url != "",
		URL:         url,
		DialTimeout: envDur("EVENTS_DIAL_TIMEOUT", 2*time.Second),
		Consume:     envBool("EVENTS_CONSUME", true),
		LogPath:     envStr("EVENTS_LOG_PATH", "logs/booking.log"),
	}
}
