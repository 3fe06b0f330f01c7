package main

import "time"

type Config struct {
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,default=5s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,default=info"`
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`

	ModerationCharReplacement string `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`

	PresenceSweepInterval time.Duration `env:"PRESENCE_SWEEP_INTERVAL,default=30s"`
	PresenceAwayAfter     time.Duration `env:"PRESENCE_AWAY_AFTER,default=5m"`
	PresenceOfflineAfter  time.Duration `env:"PRESENCE_OFFLINE_AFTER,default=30m"`

	TypingTTL             time.Duration `env:"TYPING_TTL,default=3s"`
	PongWait              time.Duration `env:"PONG_WAIT,default=60s"`
	HealthInterval        time.Duration `env:"HEALTH_INTERVAL,default=15s"`
	NotificationListLimit int           `env:"NOTIFICATION_LIST_LIMIT,default=100"`
}
