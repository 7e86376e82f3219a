package report_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/emezav/rollcall/internal/report"
)

var testLabels = report.Labels{
	Avatar:     "Avatar",
	ID:         "ID",
	Phone:      "Phone",
	Name:       "Name",
	Username:   "Username",
	Duration:   "Duration",
	Timestamps: "Timestamps",
	Online:     "Online",
	Offline:    "Offline",
}

func profileLookup(profiles map[int64]report.Profile) report.UserLookup {
	return func(userID int64) (report.Profile, error) {
		p, ok := profiles[userID]
		if !ok {
			return report.Profile{ID: userID}, nil
		}
		return p, nil
	}
}

func classification(count int, answers map[int64]map[int][]string) report.Classification {
	questions := make(map[int]string, count)
	for i := 1; i <= count; i++ {
		questions[i] = fmt.Sprintf("question number %d", i)
	}
	if answers == nil {
		answers = make(map[int64]map[int][]string)
	}
	return report.Classification{Count: count, Questions: questions, Answers: answers}
}

func TestBuildTableShape(t *testing.T) {
	t.Parallel()

	records := []report.Record{
		{UserID: aliceID, Duration: "1h05m"},
		{UserID: bobID, Duration: "45m"},
	}
	cls := classification(3, map[int64]map[int][]string{
		aliceID: {1: {"done"}},
	})

	table := report.BuildTable(records, cls, profileLookup(nil), 0, testLabels, time.UTC, nil)
	values := table.Values()

	if len(values) != 3 {
		t.Fatalf("BuildTable() produced %d rows, want header plus 2", len(values))
	}
	for i, row := range values {
		if len(row) != 7+3 {
			t.Errorf("row %d has %d cells, want %d", i, len(row), 7+3)
		}
	}

	wantHeader := []string{
		"Avatar", "ID", "Phone", "Name", "Username", "Duration", "Timestamps",
		"Q1\nquestion number 1", "Q2\nquestion number 2", "Q3\nquestion number 3",
	}
	if !reflect.DeepEqual(values[0], wantHeader) {
		t.Errorf("header = %v, want %v", values[0], wantHeader)
	}
}

func TestBuildTableRowContents(t *testing.T) {
	t.Parallel()

	profiles := map[int64]report.Profile{
		aliceID: {ID: aliceID, Phone: "+1555", FirstName: "Alice", LastName: "Ruiz", Username: "aliceruiz"},
		bobID:   {ID: bobID, FirstName: "Bob"},
	}
	records := []report.Record{
		{
			UserID:   aliceID,
			Duration: "1h05m",
			Onlines:  []int64{time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC).UnixMilli()},
			Offlines: []int64{time.Date(2026, 3, 9, 10, 5, 0, 0, time.UTC).UnixMilli()},
		},
		{UserID: bobID, Duration: "45m"},
	}
	cls := classification(2, map[int64]map[int][]string{
		aliceID: {1: {"first part", "second part"}, 2: {"all good"}},
	})

	table := report.BuildTable(records, cls, profileLookup(profiles), 0, testLabels, time.UTC, nil)
	values := table.Values()

	wantAlice := []string{
		"", "201", "+1555", "Alice Ruiz", "@aliceruiz", "1h05m",
		"Online:09:00\nOffline:10:05",
		"first part\nsecond part", "all good",
	}
	if !reflect.DeepEqual(values[1], wantAlice) {
		t.Errorf("alice row = %v, want %v", values[1], wantAlice)
	}

	wantBob := []string{
		"", "202", "", "Bob", "", "45m",
		"Online:\nOffline:",
		"", "",
	}
	if !reflect.DeepEqual(values[2], wantBob) {
		t.Errorf("bob row = %v, want %v", values[2], wantBob)
	}
}

func TestBuildTableExtraRows(t *testing.T) {
	t.Parallel()

	const operatorID = int64(999)

	records := []report.Record{
		{UserID: aliceID, Duration: "30m"},
	}
	cls := classification(1, map[int64]map[int][]string{
		aliceID:    {1: {"tracked answer"}},
		bobID:      {1: {"untracked answer"}},
		int64(150): {1: {"another untracked"}},
		operatorID: {1: {"operator chatter"}},
	})

	table := report.BuildTable(records, cls, profileLookup(nil), operatorID, testLabels, time.UTC, nil)
	values := table.Values()

	// Header, tracked alice, then untracked users sorted by id with the
	// operator excluded.
	if len(values) != 4 {
		t.Fatalf("BuildTable() produced %d rows, want 4", len(values))
	}
	if values[1][1] != "201" {
		t.Errorf("first data row id = %q, want tracked user first", values[1][1])
	}
	if values[2][1] != "150" || values[3][1] != "202" {
		t.Errorf("extra rows ids = %q, %q, want 150 then 202", values[2][1], values[3][1])
	}

	for _, row := range values[2:] {
		if row[5] != "" || row[6] != "" {
			t.Errorf("extra row %v should have empty duration and timestamp cells", row)
		}
	}
	if values[3][7] != "untracked answer" {
		t.Errorf("extra row answer = %q, want %q", values[3][7], "untracked answer")
	}
}

func TestBuildTableLookupFailure(t *testing.T) {
	t.Parallel()

	failing := func(userID int64) (report.Profile, error) {
		return report.Profile{ID: userID}, errors.New("store unavailable")
	}
	records := []report.Record{{UserID: aliceID, Duration: "10m"}}

	table := report.BuildTable(records, classification(0, nil), failing, 0, testLabels, time.UTC, nil)
	values := table.Values()

	want := []string{"", "201", "", "", "", "10m", "Online:\nOffline:"}
	if !reflect.DeepEqual(values[1], want) {
		t.Errorf("row after lookup failure = %v, want %v", values[1], want)
	}
}

func TestMergeAvatar(t *testing.T) {
	t.Parallel()

	records := []report.Record{
		{UserID: aliceID, Duration: "10m"},
		{UserID: bobID, Duration: "20m"},
	}
	table := report.BuildTable(records, classification(0, nil), profileLookup(nil), 0, testLabels, time.UTC, nil)

	// Arrival order does not matter.
	table.MergeAvatar(bobID, "data:image/jpg;base64,BBB")
	table.MergeAvatar(aliceID, "data:image/jpg;base64,AAA")

	values := table.Values()
	if values[1][0] != "data:image/jpg;base64,AAA" {
		t.Errorf("alice avatar cell = %q", values[1][0])
	}
	if values[2][0] != "data:image/jpg;base64,BBB" {
		t.Errorf("bob avatar cell = %q", values[2][0])
	}

	// Empty and unknown payloads are no-ops, repeats change nothing.
	table.MergeAvatar(aliceID, "")
	table.MergeAvatar(int64(555), "data:image/jpg;base64,XXX")
	table.MergeAvatar(aliceID, "data:image/jpg;base64,AAA")

	values = table.Values()
	if values[1][0] != "data:image/jpg;base64,AAA" {
		t.Errorf("alice avatar cell after no-op merges = %q", values[1][0])
	}
	if values[0][0] != "Avatar" {
		t.Errorf("header avatar cell = %q, want label untouched", values[0][0])
	}
}

func TestUserIDsMatchesRowOrder(t *testing.T) {
	t.Parallel()

	records := []report.Record{
		{UserID: bobID},
		{UserID: aliceID},
	}
	cls := classification(1, map[int64]map[int][]string{
		int64(150): {1: {"untracked"}},
	})

	table := report.BuildTable(records, cls, profileLookup(nil), 0, testLabels, time.UTC, nil)

	want := []int64{bobID, aliceID, 150}
	if !reflect.DeepEqual(table.UserIDs(), want) {
		t.Errorf("UserIDs() = %v, want %v", table.UserIDs(), want)
	}
}

func TestTimestampDetail(t *testing.T) {
	t.Parallel()

	onlines := []int64{
		time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC).UnixMilli(),
		time.Date(2026, 3, 9, 13, 30, 0, 0, time.UTC).UnixMilli(),
	}
	offlines := []int64{
		time.Date(2026, 3, 9, 12, 15, 0, 0, time.UTC).UnixMilli(),
	}

	got := report.TimestampDetail(onlines, offlines, testLabels, time.UTC)
	want := "Online:09:00 13:30\nOffline:12:15"
	if got != want {
		t.Errorf("TimestampDetail() = %q, want %q", got, want)
	}
}
