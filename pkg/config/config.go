package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Etcd     EtcdConfig     `mapstructure:"etcd"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Session  SessionConfig  `mapstructure:"session"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Name string `mapstructure:"name"`
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
	LeaseTTL    int64         `mapstructure:"lease_ttl"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	GuestTTL time.Duration `mapstructure:"guest_ttl"`
}

// DatabaseConfig selects the relational store. Driver is one of mysql,
// postgres or sqlite; sqlite only reads Database as the file path.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type MongoDBConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// NotifyConfig picks the change-notification transport: "redis" or "rabbitmq".
type NotifyConfig struct {
	Driver  string `mapstructure:"driver"`
	Channel string `mapstructure:"channel"`
}

type StorageConfig struct {
	Bucket        string `mapstructure:"bucket"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	BootstrapEmail string        `mapstructure:"bootstrap_email"`
	BootstrapPass  string        `mapstructure:"bootstrap_password"`
}

type SessionConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
}

type GatewayConfig struct {
	Port         int      `mapstructure:"port"`
	Host         string   `mapstructure:"host"`
	AllowOrigins []string `mapstructure:"allow_origins"`
	MaxUploadMB  int64    `mapstructure:"max_upload_mb"`

	// StatusBackend is "local" to update order status in-process or "grpc"
	// to go through the order service.
	StatusBackend string `mapstructure:"status_backend"`
}

func (c GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "tablepos")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 50052)
	v.SetDefault("etcd.dial_timeout", 5)
	v.SetDefault("etcd.prefix", "/tablepos/services/")
	v.SetDefault("etcd.lease_ttl", 30)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.guest_ttl", 30*time.Minute)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("mongodb.database", "tablepos")
	v.SetDefault("mongodb.collection", "audit_logs")
	v.SetDefault("rabbitmq.exchange", "tablepos.changes")
	v.SetDefault("notify.driver", "redis")
	v.SetDefault("notify.channel", "tablepos:changes")
	v.SetDefault("storage.bucket", "product-images")
	v.SetDefault("storage.public_base_url", "/api/v1/images")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("session.request_timeout", 5*time.Second)
	v.SetDefault("session.idle_timeout", 2*time.Hour)
	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 8080)
	v.SetDefault("gateway.max_upload_mb", 5)
	v.SetDefault("gateway.status_backend", "local")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
}

// Load reads the YAML file at configPath. Values can be overridden by
// TABLEPOS_* environment variables, which may also come from a .env file in
// the working directory.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("tablepos")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}

	return &config, nil
}

func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Host, c.Port, c.Username, c.Password, c.Database)
	case "sqlite":
		return c.Database
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.Username, c.Password, c.Host, c.Port, c.Database)
	}
}
