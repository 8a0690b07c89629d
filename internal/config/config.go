package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	WebSocket WebSocketConfig
	Realtime  RealtimeConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	Mode            string   `mapstructure:"mode"`
	Addrs           []string `mapstructure:"addrs"`
	Addr            string   `mapstructure:"addr"`
	Password        string   `mapstructure:"password"`
	DB              int      `mapstructure:"db"`
	MasterName      string   `mapstructure:"master_name"`
	MaxRetries      int      `mapstructure:"max_retries"`
	MinRetryBackoff int      `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff int      `mapstructure:"max_retry_backoff"`
}

// JWTConfig содержит настройки JWT подписи и проверки токенов (внешняя по
// отношению к ядру обязанность, §1 — но для парсинга authenticate{token}
// ядру нужны согласованные времена жизни).
type JWTConfig struct {
	Secret            string        `mapstructure:"secret"`
	AccessTokenTTL    time.Duration `mapstructure:"accessTokenTTL"`
	RefreshTokenTTL   time.Duration `mapstructure:"refreshTokenTTL"`
	WSTicketExpirySec int           `mapstructure:"wsTicketExpirySec"`
}

// CORSConfig содержит настройки CORS (Cross-Origin Resource Sharing)
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// WebSocketConfig содержит настройки транспорта WebSocket
type WebSocketConfig struct {
	Buffers BuffersConfig
	Ping    PingConfig
	Limits  LimitsConfig
}

// BuffersConfig содержит настройки буферов
type BuffersConfig struct {
	ClientSendBuffer int
}

// PingConfig содержит настройки пингов
type PingConfig struct {
	Interval int
	Timeout  int
}

// LimitsConfig содержит настройки ограничений
type LimitsConfig struct {
	MaxMessageSize      int
	WriteWait           int
	PongWait            int
	MaxConnectionsPerIP int
}

// RealtimeConfig содержит тюнинговые константы ядра (C4/C7/C8/C9),
// вынесенные в конфигурацию вместо хардкода.
type RealtimeConfig struct {
	PerQuestionDuration time.Duration `mapstructure:"perQuestionDuration"`
	AdBreakDuration     time.Duration `mapstructure:"adBreakDuration"`
	LobbyWindowBefore   time.Duration `mapstructure:"lobbyWindowBefore"`
	LobbyWindowAfter    time.Duration `mapstructure:"lobbyWindowAfter"`
	HeartbeatInterval   time.Duration `mapstructure:"heartbeatInterval"`
	CountdownThrottle   time.Duration `mapstructure:"countdownThrottle"`
	ForceLogoutDelay    time.Duration `mapstructure:"forceLogoutDelay"`
	RoundTeardownGrace  time.Duration `mapstructure:"roundTeardownGrace"`
	FillLookahead       time.Duration `mapstructure:"fillLookahead"`
	DefaultQuestionCount int          `mapstructure:"defaultQuestionCount"`
	DefaultMinPlayers    int          `mapstructure:"defaultMinPlayers"`
}

// DefaultRealtimeConfig возвращает значения по умолчанию, совпадающие с
// константами §4.2/§4.5/§4.6 спецификации.
func DefaultRealtimeConfig() RealtimeConfig {
	return RealtimeConfig{
		PerQuestionDuration:  15 * time.Second,
		AdBreakDuration:      15 * time.Second,
		LobbyWindowBefore:    60 * time.Second,
		LobbyWindowAfter:     120 * time.Second,
		HeartbeatInterval:    25 * time.Second,
		CountdownThrottle:    500 * time.Millisecond,
		ForceLogoutDelay:     500 * time.Millisecond,
		RoundTeardownGrace:   5 * time.Second,
		FillLookahead:        2 * time.Hour,
		DefaultQuestionCount: 10,
		DefaultMinPlayers:    2,
	}
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load загружает конфигурацию из файла
func Load(configPath string) (*Config, error) {
	vip := viper.New()

	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.accessTokenTTL", "JWT_ACCESS_TOKEN_TTL")
	vip.BindEnv("jwt.refreshTokenTTL", "JWT_REFRESH_TOKEN_TTL")
	vip.BindEnv("jwt.wsTicketExpirySec", "JWT_WSTICKETEXPIRYSEC")

	vip.BindEnv("server.port", "PORT")

	vip.SetDefault("realtime.perQuestionDuration", 15*time.Second)
	vip.SetDefault("realtime.adBreakDuration", 15*time.Second)
	vip.SetDefault("realtime.lobbyWindowBefore", 60*time.Second)
	vip.SetDefault("realtime.lobbyWindowAfter", 120*time.Second)
	vip.SetDefault("realtime.heartbeatInterval", 25*time.Second)
	vip.SetDefault("realtime.countdownThrottle", 500*time.Millisecond)
	vip.SetDefault("realtime.forceLogoutDelay", 500*time.Millisecond)
	vip.SetDefault("realtime.roundTeardownGrace", 5*time.Second)
	vip.SetDefault("realtime.fillLookahead", 2*time.Hour)
	vip.SetDefault("realtime.defaultQuestionCount", 10)
	vip.SetDefault("realtime.defaultMinPlayers", 2)
	vip.SetDefault("jwt.accessTokenTTL", 15*time.Minute)
	vip.SetDefault("jwt.refreshTokenTTL", 7*24*time.Hour)
	vip.SetDefault("jwt.wsTicketExpirySec", 60)

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Port: %s", cfg.Database.Port)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("JWT access token TTL: %v", cfg.JWT.AccessTokenTTL)
		log.Printf("-----------------------------------------")
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}

	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "" {
		ginMode = "debug"
	}
	if ginMode != "debug" {
		if cfg.Database.Password == "" {
			return nil, fmt.Errorf("database password is required in production mode (check DATABASE_PASSWORD env var)")
		}
	}

	return &cfg, nil
}
