// Package tasks implements the scheduled background tasks of the rollcall
// bot: the periodic record refresh and database maintenance.
package tasks

import (
	"log/slog"

	"github.com/emezav/rollcall/internal/config"
	"github.com/emezav/rollcall/internal/database"
	"github.com/emezav/rollcall/internal/tracker"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger  *slog.Logger
	Store   database.Store
	Tracker *tracker.Tracker
	Config  *config.Config
}
