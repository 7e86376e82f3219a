package handlers_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/emezav/rollcall/internal/bot/handlers"
	"github.com/emezav/rollcall/internal/config"
	"github.com/emezav/rollcall/internal/database"
	"github.com/emezav/rollcall/internal/export"
	"github.com/emezav/rollcall/internal/report"
)

// stubStore serves only the calls the export handler makes; everything
// else panics through the embedded nil interface.
type stubStore struct {
	database.Store
	recordsErr error
}

func (s *stubStore) SaveSheetURL(ctx context.Context, chatID int64, sheetURL string) error {
	return nil
}

func (s *stubStore) GetTimeRecords(ctx context.Context, chatID int64) ([]database.TimeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, s.recordsErr
}

type noopWriter struct {
	calls int
}

func (w *noopWriter) Write(ctx context.Context, sheetURL string, values [][]string) error {
	w.calls++
	return nil
}

// apiRecorder is a fake Bot API endpoint that records every method called
// on it.
type apiRecorder struct {
	mu     sync.Mutex
	bodies map[string][]string
}

func (r *apiRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	method := req.URL.Path[strings.LastIndex(req.URL.Path, "/")+1:]
	body, _ := io.ReadAll(req.Body)

	r.mu.Lock()
	if r.bodies == nil {
		r.bodies = make(map[string][]string)
	}
	r.bodies[method] = append(r.bodies[method], string(body))
	r.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if method == "sendMessage" {
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":1,"chat":{"id":42}}}`))
		return
	}
	_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
}

func (r *apiRecorder) sent(method string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bodies[method]
}

func exportDeps(t *testing.T, store database.Store, logBuf *bytes.Buffer) (handlers.HandlerDeps, *tgbot.Bot, *apiRecorder) {
	t.Helper()

	recorder := &apiRecorder{}
	server := httptest.NewServer(recorder)
	t.Cleanup(server.Close)

	b, err := tgbot.New("test-token",
		tgbot.WithServerURL(server.URL),
		tgbot.WithSkipGetMe(),
	)
	if err != nil {
		t.Fatalf("tgbot.New() error = %v", err)
	}

	log := slog.New(slog.NewTextHandler(logBuf, nil))
	writer := &noopWriter{}
	deps := handlers.HandlerDeps{
		Logger: log,
		Config: &config.Config{
			Telegram: config.TelegramConfig{
				AdminUserID: 7,
				Messages: config.Messages{
					ExportDone:   "export finished",
					ExportFailed: "export failed, try again later",
					ProvideSheet: "give me a sheet url",
				},
			},
		},
		Store:    store,
		Exporter: export.New(store, writer, nil, report.Labels{}, 1, log),
	}
	return deps, b, recorder
}

func exportUpdate() *models.Update {
	return &models.Update{
		ID: 1,
		Message: &models.Message{
			ID:   10,
			Text: "/rollcall_export https://docs.example.com/sheet",
			Chat: models.Chat{ID: 42, Type: models.ChatTypeSupergroup},
			From: &models.User{ID: 7},
		},
	}
}

func TestExportHandlerCancelledRunStaysSilent(t *testing.T) {
	t.Parallel()

	var logBuf bytes.Buffer
	deps, b, recorder := exportDeps(t, &stubStore{}, &logBuf)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handlers.NewExportHandler(deps)(ctx, b, exportUpdate())

	if got := recorder.sent("sendMessage"); len(got) != 0 {
		t.Errorf("handler sent %d messages after cancellation, want 0: %v", len(got), got)
	}
	if strings.Contains(logBuf.String(), "Export failed") {
		t.Errorf("cancelled run logged as a failure:\n%s", logBuf.String())
	}
}

func TestExportHandlerFailureSendsFailureReply(t *testing.T) {
	t.Parallel()

	var logBuf bytes.Buffer
	store := &stubStore{recordsErr: errors.New("disk on fire")}
	deps, b, recorder := exportDeps(t, store, &logBuf)

	handlers.NewExportHandler(deps)(context.Background(), b, exportUpdate())

	sent := recorder.sent("sendMessage")
	if len(sent) != 1 {
		t.Fatalf("handler sent %d messages, want 1: %v", len(sent), sent)
	}
	if !strings.Contains(sent[0], deps.Config.Telegram.Messages.ExportFailed) {
		t.Errorf("reply body = %q, want it to carry %q", sent[0], deps.Config.Telegram.Messages.ExportFailed)
	}
}
