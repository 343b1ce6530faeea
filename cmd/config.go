package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

// defaultRooms is applied in code: go-env splits tag options on commas.
const defaultRooms = "general,random,tech,design"

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	GrpcPort             int           `env:"GRPC_PORT,default=8081"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath        string        `env:"BLUGE_FILEPATH"`
	UploadDir            string        `env:"UPLOAD_DIR,default=./uploads"`
	PublicBaseURL        string        `env:"PUBLIC_BASE_URL,default=http://localhost:8080"`
	KnownRooms           string        `env:"KNOWN_ROOMS"`
	AckTimeout           time.Duration `env:"ACK_TIMEOUT,default=10s"`
	TypingExpiry         time.Duration `env:"TYPING_EXPIRY,default=1s"`
	FanoutBufferSize     int           `env:"FANOUT_BUFFER_SIZE,default=1024"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s"`
	EnqueueTimeout       time.Duration `env:"ENQUEUE_TIMEOUT,default=500ms"`
	FanoutMaxAttempts    int           `env:"FANOUT_MAX_ATTEMPTS,default=3"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=5s"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	JwtSecret            string        `env:"JWT_SECRET"`
	CensoredWords        string        `env:"CENSORED_WORDS"`
	CensoredDir          string        `env:"CENSORED_DIR"`
	CharacterReplacement string        `env:"CHARACTER_REPLACEMENT,default=*"`
	MaxUploadBytes       int           `env:"MAX_UPLOAD_BYTES,default=5242880"`
	HistoryMaxPage       int           `env:"HISTORY_MAX_PAGE,default=200"`
}

func loadConfig() (Config, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if strings.TrimSpace(config.KnownRooms) == "" {
		config.KnownRooms = defaultRooms
	}
	return config, nil
}
