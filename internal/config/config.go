package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Token
	SecretKey   string        `envconfig:"SECRET_KEY" required:"true"`
	TokenTTL    time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	TokenIssuer string        `envconfig:"TOKEN_ISSUER" default:"sharebnb"`
	BcryptCost  int           `envconfig:"BCRYPT_COST" default:"10"`

	// Server
	ServerPort        string `envconfig:"SERVER_PORT" default:"8080"`
	CORSAllowedOrigin string `envconfig:"CORS_ALLOWED_ORIGIN" default:"http://localhost:3000"`
	LogLevel          string `envconfig:"LOG_LEVEL" default:"info"`

	// 空の場合はトークン失効リストを使用しない
	RedisURL string `envconfig:"REDIS_URL"`

	// 空の場合はドメインイベントを発行しない
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"sharebnb.events"`

	// Object storage. Bucketが空の場合は画像アップロードを受け付けない。
	Bucket          string `envconfig:"BUCKET"`
	AWSRegion       string `envconfig:"AWS_REGION" default:"us-west-1"`
	AccessKey       string `envconfig:"ACCESS_KEY"`
	AccessSecretKey string `envconfig:"ACCESS_SECRET_KEY"`
	S3Endpoint      string `envconfig:"S3_ENDPOINT"`
	S3PublicBaseURL string `envconfig:"S3_PUBLIC_BASE_URL"`

	// Image
	ImageMaxBytes     int64         `envconfig:"IMAGE_MAX_BYTES" default:"5242880"`
	ImageFetchTimeout time.Duration `envconfig:"IMAGE_FETCH_TIMEOUT" default:"10s"`

	// Tracing
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load はカレントディレクトリの.envと環境変数からConfigを読み込む。
// .envが存在しない場合は環境変数のみを使用する。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate はenvconfigが検出しない不正値を確認する。
// 空文字で明示的に設定された必須変数もここで弾く。
func (c *Config) validate() error {
	var missing []string
	if strings.TrimSpace(c.DatabaseURL) == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		missing = append(missing, "SECRET_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}

	var errs []error
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, errors.New("BCRYPT_COST must be between 4 and 31"))
	}
	if c.ImageMaxBytes <= 0 {
		errs = append(errs, errors.New("IMAGE_MAX_BYTES must be positive"))
	}
	if c.ImageFetchTimeout <= 0 {
		errs = append(errs, errors.New("IMAGE_FETCH_TIMEOUT must be positive"))
	}
	if (c.AccessKey == "") != (c.AccessSecretKey == "") {
		errs = append(errs, errors.New("ACCESS_KEY and ACCESS_SECRET_KEY must be set together"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// UploadsEnabled はオブジェクトストレージが設定されているかを返す。
func (c *Config) UploadsEnabled() bool {
	return c.Bucket != ""
}

// LogValue は秘密情報を伏せた設定値をslogに渡す。
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("database_url", MaskURL(c.DatabaseURL)),
		slog.Duration("token_ttl", c.TokenTTL),
		slog.String("token_issuer", c.TokenIssuer),
		slog.Int("bcrypt_cost", c.BcryptCost),
		slog.String("server_port", c.ServerPort),
		slog.String("cors_allowed_origin", c.CORSAllowedOrigin),
		slog.String("log_level", c.LogLevel),
		slog.String("redis_url", MaskURL(c.RedisURL)),
		slog.String("amqp_url", MaskURL(c.AMQPURL)),
		slog.String("amqp_exchange", c.AMQPExchange),
		slog.String("bucket", c.Bucket),
		slog.String("aws_region", c.AWSRegion),
		slog.Bool("static_credentials", c.AccessKey != ""),
		slog.String("s3_endpoint", c.S3Endpoint),
		slog.Int64("image_max_bytes", c.ImageMaxBytes),
		slog.Duration("image_fetch_timeout", c.ImageFetchTimeout),
		slog.Bool("tracing", c.OTLPEndpoint != ""),
	)
}

// MaskURL は接続URLに含まれるパスワードを伏せ字にする。
// パースできない場合は全体を伏せる。
func MaskURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
