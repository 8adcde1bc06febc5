// Package config loads bot configuration from a JSON file with
// environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers, so
// allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	CMDOP       CMDOPConfig       `json:"cmdop"`
	Channels    ChannelsConfig    `json:"channels"`
	Permissions PermissionsConfig `json:"permissions"`
	RateLimits  RateLimitsConfig  `json:"rate_limits"`
	Log         LogConfig         `json:"log"`
}

// CMDOPConfig points the bot at the remote execution API.
type CMDOPConfig struct {
	APIKey      string `json:"api_key" env:"CMDOPBOT_API_KEY"`
	Server      string `json:"server" env:"CMDOPBOT_SERVER"`
	Machine     string `json:"machine" env:"CMDOPBOT_MACHINE"`
	Model       string `json:"model" env:"CMDOPBOT_MODEL"`
	TimeoutSecs int    `json:"timeout_secs" env:"CMDOPBOT_TIMEOUT_SECS"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
	Slack    SlackConfig    `json:"slack"`
}

type TelegramConfig struct {
	Enabled   bool                `json:"enabled" env:"CMDOPBOT_CHANNELS_TELEGRAM_ENABLED"`
	Token     string              `json:"token" env:"CMDOPBOT_CHANNELS_TELEGRAM_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"CMDOPBOT_CHANNELS_TELEGRAM_ALLOW_FROM"`
}

type DiscordConfig struct {
	Enabled   bool                `json:"enabled" env:"CMDOPBOT_CHANNELS_DISCORD_ENABLED"`
	Token     string              `json:"token" env:"CMDOPBOT_CHANNELS_DISCORD_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"CMDOPBOT_CHANNELS_DISCORD_ALLOW_FROM"`
}

type SlackConfig struct {
	Enabled   bool                `json:"enabled" env:"CMDOPBOT_CHANNELS_SLACK_ENABLED"`
	BotToken  string              `json:"bot_token" env:"CMDOPBOT_CHANNELS_SLACK_BOT_TOKEN"`
	AppToken  string              `json:"app_token" env:"CMDOPBOT_CHANNELS_SLACK_APP_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"CMDOPBOT_CHANNELS_SLACK_ALLOW_FROM"`
}

// BootstrapGrant is one grant applied at startup.
type BootstrapGrant struct {
	Identity string `json:"identity"`
	Machine  string `json:"machine"`
	Level    string `json:"level"`
}

// PermissionsConfig seeds and persists the permission store.
type PermissionsConfig struct {
	Admins    FlexibleStringSlice `json:"admins" env:"CMDOPBOT_PERMISSIONS_ADMINS"`
	Grants    []BootstrapGrant    `json:"grants"`
	Driver    string              `json:"driver" env:"CMDOPBOT_PERMISSIONS_DRIVER"` // "", "json" or "sqlite"
	StorePath string              `json:"store_path" env:"CMDOPBOT_PERMISSIONS_STORE_PATH"`
}

type RateLimitsConfig struct {
	Enabled           bool `json:"enabled" env:"CMDOPBOT_RATE_LIMITS_ENABLED"`
	RequestsPerMinute int  `json:"requests_per_minute" env:"CMDOPBOT_RATE_LIMITS_REQUESTS_PER_MINUTE"`
	GlobalPerMinute   int  `json:"global_per_minute" env:"CMDOPBOT_RATE_LIMITS_GLOBAL_PER_MINUTE"`
	Burst             int  `json:"burst" env:"CMDOPBOT_RATE_LIMITS_BURST"`
}

type LogConfig struct {
	Level     string `json:"level" env:"CMDOPBOT_LOG_LEVEL"`
	File      string `json:"file" env:"CMDOPBOT_LOG_FILE"`
	AuditFile string `json:"audit_file" env:"CMDOPBOT_LOG_AUDIT_FILE"`
}

// DefaultConfig returns a config with every channel disabled and sane
// defaults for the rest.
func DefaultConfig() *Config {
	return &Config{
		CMDOP: CMDOPConfig{
			Server:      "https://api.cmdop.com",
			Model:       "@balanced+agents",
			TimeoutSecs: 30,
		},
		Permissions: PermissionsConfig{
			Driver: "json",
		},
		RateLimits: RateLimitsConfig{
			Enabled:           true,
			RequestsPerMinute: 20,
			GlobalPerMinute:   120,
			Burst:             5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads path (a missing file yields defaults) and applies
// environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPath returns the conventional config location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "cmdop-bot.json"
	}
	return filepath.Join(home, ".cmdop-bot", "config.json")
}
