// Package config loads the Lambda configuration from environment variables.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"wisegpt/internal/domain"
)

// Common holds the settings shared by every function.
type Common struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Conversation configures the command-bus consumer that owns the event log.
type Conversation struct {
	Common

	EventTable     string        `envconfig:"EVENT_TABLE" required:"true"`
	EventTTL       time.Duration `envconfig:"EVENT_TTL" default:"0s"`
	EventQueueURL  string        `envconfig:"EVENT_QUEUE_URL" required:"true"`
	AIFunctionName string        `envconfig:"AI_FUNCTION_NAME" required:"true"`

	MaxTokensSpent         int `envconfig:"MAX_TOKENS_SPENT" default:"100000"`
	SummaryMinTokens       int `envconfig:"SUMMARY_MIN_TOKENS" default:"3000"`
	SummaryMinUserMessages int `envconfig:"SUMMARY_MIN_USER_MESSAGES" default:"4"`
}

// AI configures the worker that talks to OpenAI.
type AI struct {
	Common

	CommandQueueURL string        `envconfig:"COMMAND_QUEUE_URL" required:"true"`
	ParamPrefix     string        `envconfig:"PARAM_PREFIX" required:"true"`
	ParamCacheTTL   time.Duration `envconfig:"PARAM_CACHE_TTL" default:"5m"`
	BotName         string        `envconfig:"BOT_NAME" default:"WiseGPT"`

	OpenAIBaseURL   string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAITimeout   time.Duration `envconfig:"OPENAI_TIMEOUT" default:"60s"`
	OpenAIMaxTokens int           `envconfig:"OPENAI_MAX_TOKENS" default:"1000"`
}

// LoadConversation reads the conversation function configuration.
func LoadConversation() (*Conversation, error) {
	var cfg Conversation
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: loading conversation config: %w", err)
	}
	if cfg.EventTTL < 0 {
		return nil, fmt.Errorf("config: EVENT_TTL must not be negative")
	}
	return &cfg, nil
}

// LoadAI reads the AI worker configuration.
func LoadAI() (*AI, error) {
	var cfg AI
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: loading ai config: %w", err)
	}
	if cfg.OpenAIMaxTokens < 0 {
		return nil, fmt.Errorf("config: OPENAI_MAX_TOKENS must not be negative")
	}
	return &cfg, nil
}

// Limits returns the conversation limits. Non-positive values fall back to
// the domain defaults when the aggregate is built.
func (c *Conversation) Limits() domain.Limits {
	return domain.Limits{
		MaxTokensSpent: c.MaxTokensSpent,
		Summary: domain.SummaryThresholds{
			MinTokens:       c.SummaryMinTokens,
			MinUserMessages: c.SummaryMinUserMessages,
		},
	}
}

// NewLogger builds the JSON logger used by a function. An unknown level is an
// error rather than a silent fallback.
func NewLogger(w io.Writer, service, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("config: parse LOG_LEVEL %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", service).Logger(), nil
}
