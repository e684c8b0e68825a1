package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"seatkeeper/internal/cache"
	"seatkeeper/internal/database"
	"seatkeeper/internal/logger"
	"seatkeeper/internal/messaging"
	"seatkeeper/internal/models"
	"seatkeeper/internal/rpc"
)

// Queue drivers. "direct" runs the reservation transaction inside the API process.
const (
	QueueDriverDirect = "direct"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	LogFile        logger.FileConfig
	RequestTimeout time.Duration

	// Performance monitoring
	PprofEnabled bool
	PprofPort    string
	MetricsPort  string

	// QueueDriver selects the reservation transport: nats, kafka, memory or direct.
	QueueDriver string
	// EmbeddedExecutor starts a reservation executor inside the API (memory driver).
	EmbeddedExecutor bool

	ReserveMaxRetries   int
	ReserveRetryBackoff time.Duration
	AuditInterval       time.Duration
	SSEHeartbeat        time.Duration
	SubscriberBuffer    int

	Database      database.Config
	Queue         messaging.Config
	RPC           rpc.Config
	Cache         cache.Config
	Elasticsearch ElasticsearchConfig
}

// Load загружает конфигурацию из переменных окружения и, если задан CONFIG_FILE, из файла
func Load() *Config {
	env := newLoader()
	driver := strings.ToLower(env.getEnv("QUEUE_DRIVER", messaging.DriverNATS))

	return &Config{
		Port:      env.getEnv("PORT", "8081"),
		GinMode:   env.getEnv("GIN_MODE", "debug"),
		LogLevel:  env.getEnv("LOG_LEVEL", "info"),
		LogFormat: env.getEnv("LOG_FORMAT", "json"),
		LogFile: logger.FileConfig{
			Path:       env.getEnv("LOG_FILE", ""),
			MaxSizeMB:  env.getEnvInt("LOG_FILE_MAX_SIZE_MB", 10),
			MaxBackups: env.getEnvInt("LOG_FILE_MAX_BACKUPS", 7),
			MaxAgeDays: env.getEnvInt("LOG_FILE_MAX_AGE_DAYS", 28),
		},
		RequestTimeout: time.Duration(env.getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		// Performance monitoring
		PprofEnabled: env.getEnvBool("PPROF_ENABLED", false),
		PprofPort:    env.getEnv("PPROF_PORT", "6060"),
		MetricsPort:  env.getEnv("METRICS_PORT", "9091"),

		QueueDriver:      driver,
		EmbeddedExecutor: env.getEnvBool("EMBEDDED_EXECUTOR", driver == messaging.DriverMemory),

		ReserveMaxRetries:   env.getEnvInt("RESERVE_MAX_RETRIES", 3),
		ReserveRetryBackoff: env.getEnvMillis("RESERVE_RETRY_BACKOFF_MS", 50),
		AuditInterval:       time.Duration(env.getEnvInt("CAPACITY_AUDIT_INTERVAL_SEC", 300)) * time.Second,
		SSEHeartbeat:        time.Duration(env.getEnvInt("SSE_HEARTBEAT_SEC", 15)) * time.Second,
		SubscriberBuffer:    env.getEnvInt("ATTENDEE_SUBSCRIBER_BUFFER", 16),

		Database: database.Config{
			Host:               env.getEnv("DB_HOST", "localhost"),
			Port:               env.getEnvInt("DB_PORT", 5432),
			User:               env.getEnv("DB_USER", "seatkeeper"),
			Password:           env.getEnv("DB_PASSWORD", "seatkeeper"),
			DBName:             env.getEnv("DB_NAME", "seatkeeper"),
			SSLMode:            env.getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       env.getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:       env.getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetimeMin: env.getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: env.getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
			LockTimeoutMs:      env.getEnvInt("DB_LOCK_TIMEOUT_MS", 2000),
		},

		Queue: messaging.Config{
			Driver:            driver,
			URL:               env.getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID:         env.getEnv("NATS_CLUSTER_ID", "seatkeeper"),
			ClientID:          env.getEnv("NATS_CLIENT_ID", "seatkeeper-api"),
			Brokers:           env.getEnvList("KAFKA_BROKERS", "localhost:9092"),
			AckWait:           time.Duration(env.getEnvInt("QUEUE_ACK_WAIT_SEC", 30)) * time.Second,
			MaxInflight:       env.getEnvInt("QUEUE_MAX_INFLIGHT", 16),
			DuplicateDelivery: env.getEnvBool("QUEUE_DUPLICATE_DELIVERY", false),
		},

		RPC: rpc.Config{
			RequestSubject: env.getEnv("RPC_REQUEST_SUBJECT", models.SubjectReserve),
			QueueGroup:     env.getEnv("RPC_QUEUE_GROUP", models.QueueGroupExecutors),
			ReplyPrefix:    env.getEnv("RPC_REPLY_PREFIX", models.SubjectReserveReply),
			InstanceID:     env.getEnv("RPC_INSTANCE_ID", hostname()),
			Timeout:        env.getEnvMillis("RPC_TIMEOUT_MS", 5000),
		},

		Cache: cache.Config{
			Enabled:     env.getEnvBool("VALKEY_ENABLED", false),
			Addr:        env.getEnv("VALKEY_ADDR", "localhost:6379"),
			Password:    env.getEnv("VALKEY_PASSWORD", ""),
			DB:          env.getEnvInt("VALKEY_DB", 0),
			SnapshotKey: env.getEnv("VALKEY_SNAPSHOT_KEY", "attendees:snapshot"),
			Channel:     env.getEnv("VALKEY_SNAPSHOT_CHANNEL", models.ChannelAttendeeSnapshot),
			SnapshotTTL: time.Duration(env.getEnvInt("VALKEY_SNAPSHOT_TTL_SEC", 3600)) * time.Second,
		},

		Elasticsearch: env.elasticsearch(),
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
}

// loader reads keys from the environment through viper, so an optional config
// file can supply the same keys.
type loader struct {
	v *viper.Viper
}

func newLoader() loader {
	v := viper.New()
	v.AutomaticEnv()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("Failed to read config file, using environment only", "file", file, "error", err)
		}
	}
	return loader{v: v}
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func (l loader) getEnv(key, defaultValue string) string {
	l.v.SetDefault(key, defaultValue)
	return l.v.GetString(key)
}

// getEnvInt получает целочисленное значение переменной окружения
func (l loader) getEnvInt(key string, defaultValue int) int {
	l.v.SetDefault(key, defaultValue)
	return l.v.GetInt(key)
}

func (l loader) getEnvBool(key string, defaultValue bool) bool {
	l.v.SetDefault(key, defaultValue)
	return l.v.GetBool(key)
}

func (l loader) getEnvMillis(key string, defaultValue int) time.Duration {
	return time.Duration(l.getEnvInt(key, defaultValue)) * time.Millisecond
}

// getEnvList splits a comma separated value.
func (l loader) getEnvList(key, defaultValue string) []string {
	var out []string
	for _, item := range strings.Split(l.getEnv(key, defaultValue), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
