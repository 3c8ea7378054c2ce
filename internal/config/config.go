package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	LogLevel       string
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	AllowedOrigins []string // CORS and websocket origin allow-list
	TrustProxy     bool     // take the client IP from proxy headers; only behind a trusted proxy

	Realtime Realtime
	Ledger   Ledger

	DeadLetterBucket   string // optional S3 bucket for failed notification writes
	DeadLetterTopicARN string // optional SNS topic alerted on failed notification writes
	SNSRegion          string
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Notifications string
	Users         string
	Favorites     string
}

// Realtime tunes the websocket gateway.
type Realtime struct {
	SendBuffer         int
	WriteTimeout       time.Duration
	PongTimeout        time.Duration
	MaxMessageBytes    int64
	UnreadBacklogLimit int
	ConnectRate        float64 // upgrades per second per IP
	ConnectBurst       int
}

// Ledger tunes the retry policy of notification writes.
type Ledger struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Notifications: getEnv("DYNAMO_TABLE_NOTIFICATIONS", "notifications"),
			Users:         getEnv("DYNAMO_TABLE_USERS", "users"),
			Favorites:     getEnv("DYNAMO_TABLE_FAVORITES", "favorites"),
		},
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", 7*24*time.Hour),
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		TrustProxy:        getEnvBool("TRUST_PROXY_HEADERS", false),
		Realtime: Realtime{
			SendBuffer:         getEnvInt("WS_SEND_BUFFER", 64),
			WriteTimeout:       getEnvDuration("WS_WRITE_TIMEOUT", 10*time.Second),
			PongTimeout:        getEnvDuration("WS_PONG_TIMEOUT", 60*time.Second),
			MaxMessageBytes:    int64(getEnvInt("WS_MAX_MESSAGE_BYTES", 4096)),
			UnreadBacklogLimit: getEnvInt("UNREAD_BACKLOG_LIMIT", 20),
			ConnectRate:        getEnvFloat("WS_CONNECT_RATE", 2),
			ConnectBurst:       getEnvInt("WS_CONNECT_BURST", 10),
		},
		Ledger: Ledger{
			MaxRetries:      uint64(getEnvInt("LEDGER_MAX_RETRIES", 3)),
			InitialInterval: getEnvDuration("LEDGER_RETRY_INITIAL", 100*time.Millisecond),
			MaxInterval:     getEnvDuration("LEDGER_RETRY_MAX", 2*time.Second),
		},
		DeadLetterBucket:   getEnv("DEADLETTER_S3_BUCKET", ""),
		DeadLetterTopicARN: getEnv("DEADLETTER_SNS_TOPIC_ARN", ""),
		SNSRegion:          getEnv("SNS_REGION", "us-east-1"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("250ms", "10s").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
