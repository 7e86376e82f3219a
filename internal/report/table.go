package report

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Fixed columns before the per-question ones: avatar, id, phone, name,
// username, duration, timestamp detail.
const fixedColumns = 7

const avatarColumn = 0

// Labels names the fixed columns and the two halves of the timestamp
// detail cell.
type Labels struct {
	Avatar     string
	ID         string
	Phone      string
	Name       string
	Username   string
	Duration   string
	Timestamps string
	Online     string
	Offline    string
}

// Record is one tracked user's attendance entry, ready for export.
type Record struct {
	UserID   int64
	Duration string
	Onlines  []int64 // epoch milliseconds, chronological
	Offlines []int64 // epoch milliseconds, chronological
}

// Profile holds the per-user fields rendered into a row.
type Profile struct {
	ID        int64
	Phone     string
	FirstName string
	LastName  string
	Username  string
}

// DisplayName joins the profile's name parts.
func (p Profile) DisplayName() string {
	if p.FirstName != "" && p.LastName != "" {
		return p.FirstName + " " + p.LastName
	}
	if p.FirstName != "" {
		return p.FirstName
	}
	return p.LastName
}

// UserLookup resolves a user id to profile fields. A lookup error degrades
// the affected row to empty optional fields; it never aborts the export.
type UserLookup func(userID int64) (Profile, error)

// Table is the export grid: a header row plus one row per user. Rows are
// mutated only through MergeAvatar, which the export pipeline calls from a
// single goroutine.
type Table struct {
	cells     [][]string
	userIDs   []int64
	rowByUser map[int64]int
}

// BuildTable assembles the export table from the tracked records and the
// question classification. Tracked users come first in stored order; users
// who answered questions without a tracked record (except the operator) are
// appended with empty duration and timestamp fields. Every row, header
// included, has exactly fixedColumns + cls.Count cells.
func BuildTable(records []Record, cls Classification, lookup UserLookup, operatorID int64, labels Labels, loc *time.Location, log *slog.Logger) *Table {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}

	header := []string{
		labels.Avatar,
		labels.ID,
		labels.Phone,
		labels.Name,
		labels.Username,
		labels.Duration,
		labels.Timestamps,
	}
	for i := 1; i <= cls.Count; i++ {
		header = append(header, fmt.Sprintf("Q%d\n%s", i, cls.Questions[i]))
	}

	t := &Table{
		cells:     [][]string{header},
		rowByUser: make(map[int64]int),
	}

	for _, record := range records {
		row := baseRow(record.UserID, lookup, log)
		row = append(row, record.Duration)
		row = append(row, TimestampDetail(record.Onlines, record.Offlines, labels, loc))
		row = appendAnswers(row, cls, record.UserID)
		delete(cls.Answers, record.UserID)
		t.addRow(record.UserID, row)
	}

	// Users who answered questions but have no tracked record still get a
	// row, except the operator's own.
	extraIDs := make([]int64, 0, len(cls.Answers))
	for userID := range cls.Answers {
		if userID == operatorID {
			continue
		}
		extraIDs = append(extraIDs, userID)
	}
	sort.Slice(extraIDs, func(i, j int) bool { return extraIDs[i] < extraIDs[j] })

	for _, userID := range extraIDs {
		row := baseRow(userID, lookup, log)
		row = append(row, "", "")
		row = appendAnswers(row, cls, userID)
		t.addRow(userID, row)
	}

	return t
}

func (t *Table) addRow(userID int64, row []string) {
	t.rowByUser[userID] = len(t.cells)
	t.cells = append(t.cells, row)
	t.userIDs = append(t.userIDs, userID)
}

func baseRow(userID int64, lookup UserLookup, log *slog.Logger) []string {
	profile, err := lookup(userID)
	if err != nil {
		log.Warn("User lookup failed, exporting row with empty fields", "user_id", userID, "error", err)
		profile = Profile{ID: userID}
	}

	username := ""
	if profile.Username != "" {
		username = "@" + profile.Username
	}

	return []string{
		"",
		strconv.FormatInt(userID, 10),
		profile.Phone,
		profile.DisplayName(),
		username,
	}
}

func appendAnswers(row []string, cls Classification, userID int64) []string {
	byBlock := cls.Answers[userID]
	for i := 1; i <= cls.Count; i++ {
		row = append(row, strings.Join(byBlock[i], "\n"))
	}
	return row
}

// UserIDs returns the ids of all data rows in row order; the export
// pipeline launches one avatar fetch per entry.
func (t *Table) UserIDs() []int64 {
	ids := make([]int64, len(t.userIDs))
	copy(ids, t.userIDs)
	return ids
}

// MergeAvatar patches the avatar cell of the row belonging to userID. An
// unknown userID or an empty data URI is a no-op, and applying the same
// payload twice leaves the table unchanged.
func (t *Table) MergeAvatar(userID int64, dataURI string) {
	if dataURI == "" {
		return
	}
	rowIdx, ok := t.rowByUser[userID]
	if !ok {
		return
	}
	t.cells[rowIdx][avatarColumn] = dataURI
}

// Values returns the table as rows of cells, header first.
func (t *Table) Values() [][]string {
	return t.cells
}

// TimestampDetail renders the online and offline marks as two labeled
// lines of HH:mm times in the given location.
func TimestampDetail(onlines, offlines []int64, labels Labels, loc *time.Location) string {
	return labels.Online + ":" + joinTimes(onlines, loc) + "\n" +
		labels.Offline + ":" + joinTimes(offlines, loc)
}

func joinTimes(marks []int64, loc *time.Location) string {
	parts := make([]string, len(marks))
	for i, ms := range marks {
		parts[i] = time.UnixMilli(ms).In(loc).Format("15:04")
	}
	return strings.Join(parts, " ")
}
