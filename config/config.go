package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"bramble"`
	Port                          int      `env:"PORT" env-default:"3006"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL (Staging Database)
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"bramble"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseReconnectRetryCount   int           `env:"DB_RECONNECT_RETRY_COUNT" env-default:"3"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Tracing
	TracingExporter string `env:"TRACING_EXPORTER" env-default:""`
	OTLPEndpoint    string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	OTLPProtocol    string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure    bool   `env:"OTLP_INSECURE" env-default:"true"`

	// Graph Database (Memgraph/Neo4j)
	GraphDBHost     string `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser     string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" env-default:""`

	// Redis (cursor store)
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Kafka Consumer (job triggers)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaTriggerTopic    string   `env:"KAFKA_TRIGGER_TOPIC" env-default:"bramble-triggers"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"bramble-consumer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`

	// Kafka Producer (job events + requeued work)
	KafkaEventsTopic  string `env:"KAFKA_EVENTS_TOPIC" env-default:"bramble-job-events"`
	KafkaBatchSize    int    `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Job driver
	JobTimeBudget      time.Duration `env:"JOB_TIME_BUDGET" env-default:"520s"`
	JobBatchSize       int           `env:"JOB_BATCH_SIZE" env-default:"100"`
	JobMaxRetries      int           `env:"JOB_MAX_RETRIES" env-default:"3"`
	JobRetryDelay      time.Duration `env:"JOB_RETRY_DELAY" env-default:"2s"`
	JobMaxSoftFailures int           `env:"JOB_MAX_SOFT_FAILURES" env-default:"5"`

	// Lobbying ingest (REST source)
	LobbyingAPIBaseURL   string        `env:"LOBBYING_API_BASE_URL" env-default:""`
	LobbyingAPIKey       string        `env:"LOBBYING_API_KEY" env-default:""`
	LobbyingAPIPageSize  int           `env:"LOBBYING_API_PAGE_SIZE" env-default:"100"`
	LobbyingAPIMaxOffset int           `env:"LOBBYING_API_MAX_OFFSET" env-default:"9900"`
	LobbyingAPITimeout   time.Duration `env:"LOBBYING_API_TIMEOUT" env-default:"30s"`
}
