package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/gookit/validate"
	"github.com/joho/godotenv"
)

const defaultSystemPrompt = `You are BrahMos Bot, an AI assistant created by @Rystrix and @BrahmosAI.
You reply with clarity, confidence and a professional, modern tone.
Always answer in the language the user writes in.
Acknowledge your creators if asked about your origin.
In groups you answer only when mentioned or replied to.
Remember the previous messages of the conversation and keep context.
Do not use emojis. Structure answers cleanly with Markdown: bold, inline code and lists.`

type Config struct {
	TelegramBotToken string   `env:"TELEGRAM_BOT_TOKEN" validate:"required"`
	OwnerIDs         []int64  `env:"OWNER_IDS" envSeparator:" "`
	BotNames         []string `env:"BOT_NAMES" envSeparator:"," envDefault:"BrahMos,Bramo,Brahmo"`

	APIKey            string  `env:"AI_API_KEY"`
	ChatURL           string  `env:"CHAT_API_URL" envDefault:"http://api.akashiverse.com/v1/chat/completions" validate:"required"`
	ChatModel         string  `env:"CHAT_MODEL" envDefault:"gpt-4.1" validate:"required"`
	ChatMaxTokens     int     `env:"CHAT_MAX_TOKENS" envDefault:"1000" validate:"min:1"`
	ChatTemperature   float32 `env:"CHAT_TEMPERATURE" envDefault:"0.8"`
	SystemPrompt      string  `env:"SYSTEM_PROMPT"`
	ImageURL          string  `env:"IMAGE_API_URL" envDefault:"http://api.akashiverse.com/v1/models" validate:"required"`
	ImageModel        string  `env:"IMAGE_MODEL" envDefault:"firebase/imagen-3" validate:"required"`
	EditModel         string  `env:"EDIT_MODEL" envDefault:"replicate/google/nano-banana" validate:"required"`
	ImageSize         string  `env:"IMAGE_SIZE" envDefault:"1024x1024"`
	SpeechBaseURL     string  `env:"TTS_API_BASE" envDefault:"http://api.akashiverse.com/v1" validate:"required"`
	SpeechModel       string  `env:"TTS_MODEL" envDefault:"gpt-4o-mini-tts" validate:"required"`
	SpeechVoice       string  `env:"TTS_VOICE" envDefault:"alloy" validate:"required"`
	UpstreamPerMinute int     `env:"UPSTREAM_REQUESTS_PER_MINUTE" envDefault:"0"`

	ChatTimeout     time.Duration `env:"CHAT_TIMEOUT" envDefault:"60s"`
	ImageTimeout    time.Duration `env:"IMAGE_TIMEOUT" envDefault:"120s"`
	DownloadTimeout time.Duration `env:"DOWNLOAD_TIMEOUT" envDefault:"60s"`
	DownloadRetries int           `env:"DOWNLOAD_RETRIES" envDefault:"2"`
	SpeechTimeout   time.Duration `env:"TTS_TIMEOUT" envDefault:"60s"`

	FreeImageLimit int `env:"FREE_IMAGE_LIMIT" envDefault:"100" validate:"min:0"`
	FreeTTSLimit   int `env:"FREE_TTS_LIMIT" envDefault:"100" validate:"min:0"`

	StorageDriver    string `env:"STORAGE_DRIVER" envDefault:"file" validate:"in:file,sqlite,postgres"`
	PremiumUsersFile string `env:"PREMIUM_USERS_FILE" envDefault:"premium_users.json"`
	UsageDataFile    string `env:"USAGE_DATA_FILE" envDefault:"usage_data.json"`
	SQLitePath       string `env:"SQLITE_PATH" envDefault:"brahmos.db"`
	PgURL            string `env:"DATABASE_URL"`

	StateTTL        time.Duration `env:"STATE_TTL" envDefault:"10m"`
	StateCacheSize  int           `env:"STATE_CACHE_BYTES" envDefault:"1048576"`
	SweepInterval   time.Duration `env:"USAGE_SWEEP_INTERVAL" envDefault:"1h"`
	RefreshInterval time.Duration `env:"PREMIUM_REFRESH_INTERVAL" envDefault:"1m"`
	Timezone        string        `env:"TZ_NAME" envDefault:"Local"`

	ContactURL        string `env:"CONTACT_URL" envDefault:"https://t.me/Rystrix_XD"`
	OpsAddr           string `env:"OPS_ADDR" envDefault:":9090"`
	DigitalOceanToken string `env:"DIGITALOCEAN_TOKEN"`

	LogLevel   string `env:"LOG_LEVEL" envDefault:"info" validate:"in:debug,info,warn,error"`
	LogNoColor bool   `env:"LOG_NO_COLOR"`
}

// LoadConfig reads .env when present and then the environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing env config: %w", err)
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	return cfg, nil
}

// Validate checks what serve needs. Admin commands work on a partial config.
func (c Config) Validate() error {
	v := validate.Struct(&c)
	if !v.Validate() {
		return fmt.Errorf("invalid config: %s", v.Errors.One())
	}
	if c.StorageDriver == "postgres" && c.PgURL == "" {
		return errors.New("invalid config: DATABASE_URL is required for the postgres storage driver")
	}
	if c.SweepInterval <= 0 {
		return errors.New("invalid config: USAGE_SWEEP_INTERVAL must be positive")
	}
	if c.RefreshInterval <= 0 {
		return errors.New("invalid config: PREMIUM_REFRESH_INTERVAL must be positive")
	}
	return nil
}

func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
