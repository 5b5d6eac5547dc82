package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	// Длительности фаз по умолчанию; команда может переопределить их
	// на один переход.
	DefaultPitchDuration  time.Duration
	DefaultVotingDuration time.Duration

	// Интервал фонового закрытия просроченных окон голосования.
	// 0 отключает reaper.
	ReaperInterval time.Duration

	// Cloudflare R2 для публикации снапшотов результатов. Опционально:
	// при пустых значениях архивирование отключено.
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string

	// SMTP для анонсов переходов. Опционально: при пустом хосте анонсы
	// уходят в лог.
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPass       string
	SMTPFrom       string
	SMTPRecipients []string
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Загружаем .env файл, если он есть. Ошибку не считаем фатальной.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	pitchSeconds, err := intEnv("DEFAULT_PITCH_DURATION_SECONDS", 300)
	if err != nil {
		return nil, err
	}
	if pitchSeconds <= 0 {
		return nil, fmt.Errorf("DEFAULT_PITCH_DURATION_SECONDS must be positive, got %d", pitchSeconds)
	}

	votingSeconds, err := intEnv("DEFAULT_VOTING_DURATION_SECONDS", 120)
	if err != nil {
		return nil, err
	}
	if votingSeconds <= 0 {
		return nil, fmt.Errorf("DEFAULT_VOTING_DURATION_SECONDS must be positive, got %d", votingSeconds)
	}

	reaperSeconds, err := intEnv("REAPER_INTERVAL_SECONDS", 15)
	if err != nil {
		return nil, err
	}
	if reaperSeconds < 0 {
		return nil, fmt.Errorf("REAPER_INTERVAL_SECONDS must not be negative, got %d", reaperSeconds)
	}

	smtpPort, err := intEnv("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:  dbURL,
		JWTSecretKey: jwtKey,
		ServerPort:   port,

		DefaultPitchDuration:  time.Duration(pitchSeconds) * time.Second,
		DefaultVotingDuration: time.Duration(votingSeconds) * time.Second,
		ReaperInterval:        time.Duration(reaperSeconds) * time.Second,

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),

		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPPort:       smtpPort,
		SMTPUser:       os.Getenv("SMTP_USER"),
		SMTPPass:       os.Getenv("SMTP_PASS"),
		SMTPFrom:       os.Getenv("SMTP_FROM"),
		SMTPRecipients: splitEnvList(os.Getenv("SMTP_RECIPIENTS")),
	}

	return cfg, nil
}

// R2Enabled сообщает, заполнены ли все поля для публикации снапшотов.
func (c *Config) R2Enabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" &&
		c.R2SecretAccessKey != "" && c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

func intEnv(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	return value, nil
}

func splitEnvList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
