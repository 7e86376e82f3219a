// Package handlers contains the Telegram command and message handlers of
// the rollcall bot, along with their registration logic and middleware.
package handlers

import (
	"log/slog"

	"github.com/emezav/rollcall/internal/config"
	"github.com/emezav/rollcall/internal/database"
	"github.com/emezav/rollcall/internal/export"
	"github.com/emezav/rollcall/internal/gemini"
	"github.com/emezav/rollcall/internal/tracker"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Store    database.Store
	Tracker  *tracker.Tracker
	Exporter *export.Exporter
	Gemini   gemini.Client // nil when the summary feature is disabled
}
