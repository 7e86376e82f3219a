package tracker_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/emezav/rollcall/internal/database"
	"github.com/emezav/rollcall/internal/tracker"
)

const (
	chatID = int64(-1001)
	userA  = int64(11)
	userB  = int64(12)
)

// memStore is an in-memory Store for tracker tests. Only the call session
// and time record methods carry real behavior.
type memStore struct {
	records map[int64]*database.TimeRecord // keyed by user id, single chat
	session *database.CallSession
}

func newMemStore() *memStore {
	return &memStore{records: make(map[int64]*database.TimeRecord)}
}

func (s *memStore) Ping(context.Context) error { return nil }
func (s *memStore) SaveMessage(context.Context, *database.Message) error { return nil }
func (s *memStore) GetMessagesInChat(context.Context, int64) ([]database.Message, error) {
	return nil, nil
}
func (s *memStore) UpsertUser(context.Context, *database.User) error { return nil }
func (s *memStore) GetUser(context.Context, int64) (*database.User, error) { return nil, nil }
func (s *memStore) GetTrackedChatIDs(context.Context) ([]int64, error) { return nil, nil }
func (s *memStore) DeleteChatData(context.Context, int64) error { return nil }
func (s *memStore) GetSheetURL(context.Context, int64) (string, error) { return "", nil }
func (s *memStore) SaveSheetURL(context.Context, int64, string) error { return nil }
func (s *memStore) RunSQLMaintenance(context.Context) error { return nil }

func (s *memStore) GetTimeRecords(_ context.Context, _ int64) ([]database.TimeRecord, error) {
	var out []database.TimeRecord
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	return out, nil
}

func (s *memStore) GetTimeRecord(_ context.Context, _, userID int64) (*database.TimeRecord, error) {
	rec, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	clone := *rec
	return &clone, nil
}

func (s *memStore) SaveTimeRecord(_ context.Context, record *database.TimeRecord) error {
	clone := *record
	s.records[record.UserID] = &clone
	return nil
}

func (s *memStore) StartCallSession(_ context.Context, chatID int64, at time.Time) error {
	s.session = &database.CallSession{ChatID: chatID, StartedAt: at}
	return nil
}

func (s *memStore) EndCallSession(_ context.Context, _ int64, at time.Time) error {
	if s.session != nil {
		s.session.EndedAt = sql.NullTime{Time: at, Valid: true}
		s.session = nil
	}
	return nil
}

func (s *memStore) GetOpenCallSession(context.Context, int64) (*database.CallSession, error) {
	return s.session, nil
}

func marks(t *testing.T, rec *database.TimeRecord) (onlines, offlines []int64) {
	t.Helper()
	onlines, err := rec.OnlineTimes()
	if err != nil {
		t.Fatalf("OnlineTimes() error = %v", err)
	}
	offlines, err = rec.OfflineTimes()
	if err != nil {
		t.Fatalf("OfflineTimes() error = %v", err)
	}
	return onlines, offlines
}

func TestMarkIgnoredOutsideCall(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	trk := tracker.New(store, nil)

	if err := trk.MarkOnline(context.Background(), chatID, userA, time.Now()); err != nil {
		t.Fatalf("MarkOnline() error = %v", err)
	}
	if len(store.records) != 0 {
		t.Errorf("mark outside a call session created a record: %v", store.records)
	}
}

func TestCallLifecycle(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	trk := tracker.New(store, nil)
	ctx := context.Background()

	start := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)

	if err := trk.CallStarted(ctx, chatID, userA, start); err != nil {
		t.Fatalf("CallStarted() error = %v", err)
	}

	// The starter gets an online mark immediately.
	rec := store.records[userA]
	if rec == nil {
		t.Fatal("CallStarted() did not create the starter's record")
	}
	onlines, offlines := marks(t, rec)
	if len(onlines) != 1 || onlines[0] != start.UnixMilli() {
		t.Errorf("starter onlines = %v, want [%d]", onlines, start.UnixMilli())
	}
	if len(offlines) != 0 {
		t.Errorf("starter offlines = %v, want none", offlines)
	}

	// A second participant joins, then hangs up.
	join := start.Add(5 * time.Minute)
	leave := start.Add(35 * time.Minute)
	if err := trk.MarkOnline(ctx, chatID, userB, join); err != nil {
		t.Fatalf("MarkOnline() error = %v", err)
	}
	if err := trk.MarkOffline(ctx, chatID, userB, leave); err != nil {
		t.Fatalf("MarkOffline() error = %v", err)
	}
	if got := store.records[userB].Duration; got != "30m" {
		t.Errorf("participant duration = %q, want %q", got, "30m")
	}

	// Call ends; the starter never hung up and gets closed automatically.
	end := start.Add(65 * time.Minute)
	if err := trk.CallEnded(ctx, chatID, end); err != nil {
		t.Fatalf("CallEnded() error = %v", err)
	}

	onlines, offlines = marks(t, store.records[userA])
	if len(offlines) != 1 || offlines[0] != end.UnixMilli() {
		t.Errorf("starter offlines after call end = %v, want [%d]", offlines, end.UnixMilli())
	}
	if got := store.records[userA].Duration; got != "1h05m" {
		t.Errorf("starter duration = %q, want %q", got, "1h05m")
	}

	// The completed participant record is left alone.
	_, offlinesB := marks(t, store.records[userB])
	if len(offlinesB) != 1 {
		t.Errorf("participant offlines after call end = %v, want the original single mark", offlinesB)
	}

	// Marks after the call are ignored again.
	if err := trk.MarkOnline(ctx, chatID, userB, end.Add(time.Minute)); err != nil {
		t.Fatalf("MarkOnline() error = %v", err)
	}
	onlinesB, _ := marks(t, store.records[userB])
	if len(onlinesB) != 1 {
		t.Errorf("participant onlines after call end = %v, want unchanged", onlinesB)
	}
}

func TestRefreshDurations(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	rec := &database.TimeRecord{ChatID: chatID, UserID: userA, Duration: "stale"}
	start := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	if err := rec.SetOnlineTimes([]int64{start.UnixMilli()}); err != nil {
		t.Fatal(err)
	}
	if err := rec.SetOfflineTimes([]int64{start.Add(42 * time.Minute).UnixMilli()}); err != nil {
		t.Fatal(err)
	}
	store.records[userA] = rec

	trk := tracker.New(store, nil)
	if err := trk.RefreshDurations(context.Background(), chatID); err != nil {
		t.Fatalf("RefreshDurations() error = %v", err)
	}
	if got := store.records[userA].Duration; got != "42m" {
		t.Errorf("refreshed duration = %q, want %q", got, "42m")
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	ms := func(d time.Duration) int64 { return base.Add(d).UnixMilli() }

	testCases := []struct {
		name     string
		onlines  []int64
		offlines []int64
		want     string
	}{
		{
			name: "no marks",
			want: "0m",
		},
		{
			name:    "dangling online does not count",
			onlines: []int64{ms(0)},
			want:    "0m",
		},
		{
			name:     "single interval under an hour",
			onlines:  []int64{ms(0)},
			offlines: []int64{ms(45 * time.Minute)},
			want:     "45m",
		},
		{
			name:     "intervals summed across pairs",
			onlines:  []int64{ms(0), ms(2 * time.Hour)},
			offlines: []int64{ms(30 * time.Minute), ms(2*time.Hour + 40*time.Minute)},
			want:     "1h10m",
		},
		{
			name:     "minutes zero padded after hours",
			onlines:  []int64{ms(0)},
			offlines: []int64{ms(2*time.Hour + 5*time.Minute)},
			want:     "2h05m",
		},
		{
			name:     "negative interval ignored",
			onlines:  []int64{ms(time.Hour)},
			offlines: []int64{ms(0)},
			want:     "0m",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := tracker.FormatDuration(tc.onlines, tc.offlines); got != tc.want {
				t.Errorf("FormatDuration() = %q, want %q", got, tc.want)
			}
		})
	}
}
