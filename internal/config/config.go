// Package config manages application configuration from config.yaml,
// ROLLCALL_* environment variables, and built-in defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/emezav/rollcall/internal/report"
)

// Config defines the application configuration for all components of the
// rollcall bot: logging, Telegram transport, database, the sheet export
// endpoint, the Gemini summary client, and the scheduler.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Sheets    SheetsConfig    `mapstructure:"sheets"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Export    ExportConfig    `mapstructure:"export"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// TelegramConfig holds the bot token, the admin, and user-visible messages.
type TelegramConfig struct {
	Token       string   `mapstructure:"token"    validate:"required"`
	AdminUserID int64    `mapstructure:"admin_id" validate:"required,gt=0"`
	Messages    Messages `mapstructure:"messages"`
}

// Messages defines the user-visible reply texts.
type Messages struct {
	Welcome        string `mapstructure:"welcome"`
	Help           string `mapstructure:"help"`
	NotAuthorized  string `mapstructure:"not_authorized"`
	GeneralError   string `mapstructure:"general_error"`
	NoRecords      string `mapstructure:"no_records"`
	ClearDone      string `mapstructure:"clear_done"`
	ExportDone     string `mapstructure:"export_done"`
	ExportFailed   string `mapstructure:"export_failed"`
	ProvideSheet   string `mapstructure:"provide_sheet"`
	RecordsHeader  string `mapstructure:"records_header"`
	DurationPrefix string `mapstructure:"duration_prefix"`
}

// DatabaseConfig holds SQLite connection settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// SheetsConfig holds the sheet relay endpoint settings.
type SheetsConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout"  validate:"min=1s,max=10m"`
}

// GeminiConfig holds the optional AI summary settings. The summary command
// is disabled when no API key is configured.
type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	ModelName   string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature" validate:"min=0,max=2"`
	Instruction string  `mapstructure:"instruction"`
}

// SchedulerConfig holds cron-style schedules per task name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig enables a named scheduled task with a cron expression.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// ExportConfig holds the export table column labels.
type ExportConfig struct {
	Labels Labels `mapstructure:"labels"`
}

// Labels names the fixed columns of the export table and the two halves of
// the timestamp detail cell. All labels are overridable for localization.
type Labels struct {
	Avatar     string `mapstructure:"avatar"     validate:"required"`
	ID         string `mapstructure:"id"         validate:"required"`
	Phone      string `mapstructure:"phone"      validate:"required"`
	Name       string `mapstructure:"name"       validate:"required"`
	Username   string `mapstructure:"username"   validate:"required"`
	Duration   string `mapstructure:"duration"   validate:"required"`
	Timestamps string `mapstructure:"timestamps" validate:"required"`
	Online     string `mapstructure:"online"     validate:"required"`
	Offline    string `mapstructure:"offline"    validate:"required"`
}

// Table returns the labels as the report builder's label set.
func (l Labels) Table() report.Labels {
	return report.Labels{
		Avatar:     l.Avatar,
		ID:         l.ID,
		Phone:      l.Phone,
		Name:       l.Name,
		Username:   l.Username,
		Duration:   l.Duration,
		Timestamps: l.Timestamps,
		Online:     l.Online,
		Offline:    l.Offline,
	}
}

// Load reads configuration from defaults, an optional config.yaml, and
// ROLLCALL_* environment variables, then validates the result.
func Load() (*Config, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("ROLLCALL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing config file is fine, defaults plus env cover it.
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")

	viper.SetDefault("database.path", "rollcall.db")

	viper.SetDefault("sheets.timeout", time.Minute)

	viper.SetDefault("gemini.model", "gemini-2.0-flash")
	viper.SetDefault("gemini.temperature", 1.0)
	viper.SetDefault("gemini.instruction",
		"You summarize group call attendance tables. Be brief and factual.")

	viper.SetDefault("telegram.messages.welcome",
		"I track group call attendance. Use /help to see the available commands.")
	viper.SetDefault("telegram.messages.help",
		"Commands:\n"+
			"/rollcall_list - show attendance records for this chat\n"+
			"/rollcall_copy - send the records as JSON\n"+
			"/rollcall_export <sheet_url> - write the attendance table to a sheet (admin)\n"+
			"/rollcall_summary - summarize the attendance table (admin)\n"+
			"/rollcall_clear - delete this chat's records (admin)")
	viper.SetDefault("telegram.messages.not_authorized",
		"You are not authorized to use this command.")
	viper.SetDefault("telegram.messages.general_error",
		"An error occurred. Please try again later.")
	viper.SetDefault("telegram.messages.no_records",
		"No attendance records for this chat.")
	viper.SetDefault("telegram.messages.clear_done",
		"Attendance records cleared.")
	viper.SetDefault("telegram.messages.export_done",
		"Attendance exported to the sheet.")
	viper.SetDefault("telegram.messages.export_failed",
		"Export failed. Check the sheet URL and try again.")
	viper.SetDefault("telegram.messages.provide_sheet",
		"Please provide a sheet URL: /rollcall_export <sheet_url>")
	viper.SetDefault("telegram.messages.records_header",
		"Attendance records:\n\n")
	viper.SetDefault("telegram.messages.duration_prefix",
		"Total: ")

	viper.SetDefault("export.labels.avatar", "Avatar")
	viper.SetDefault("export.labels.id", "ID")
	viper.SetDefault("export.labels.phone", "Phone")
	viper.SetDefault("export.labels.name", "Name")
	viper.SetDefault("export.labels.username", "Username")
	viper.SetDefault("export.labels.duration", "Duration")
	viper.SetDefault("export.labels.timestamps", "Timestamps")
	viper.SetDefault("export.labels.online", "Online")
	viper.SetDefault("export.labels.offline", "Offline")

	viper.SetDefault("scheduler.tasks.record_refresh.enabled", true)
	viper.SetDefault("scheduler.tasks.record_refresh.schedule", "0 * * * * *")
	viper.SetDefault("scheduler.tasks.sql_maintenance.enabled", true)
	viper.SetDefault("scheduler.tasks.sql_maintenance.schedule", "0 0 4 * * *")
}
