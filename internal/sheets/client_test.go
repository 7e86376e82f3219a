package sheets_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/emezav/rollcall/internal/sheets"
)

const targetSheet = "https://docs.example.com/sheet/42"

func newClient(t *testing.T, baseURL string) *sheets.Client {
	t.Helper()
	c, err := sheets.NewClient(baseURL, time.Second, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := sheets.NewClient("", time.Second, nil); err == nil {
		t.Error("NewClient() with empty base URL should fail")
	}
}

func TestRead(t *testing.T) {
	t.Parallel()

	var gotMethod string
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = map[string]string{
			"action":    r.URL.Query().Get("action"),
			"sheet_url": r.URL.Query().Get("sheet_url"),
		}
		_ = json.NewEncoder(w).Encode(map[string][][]string{
			"data": {{"ID", "Name"}, {"1", "Alice"}},
		})
	}))
	defer srv.Close()

	rows, err := newClient(t, srv.URL).Read(context.Background(), targetSheet)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if gotMethod != http.MethodGet {
		t.Errorf("Read() used method %q, want GET", gotMethod)
	}
	want := map[string]string{"action": "read", "sheet_url": targetSheet}
	if !reflect.DeepEqual(gotQuery, want) {
		t.Errorf("Read() query = %v, want %v", gotQuery, want)
	}
	wantRows := [][]string{{"ID", "Name"}, {"1", "Alice"}}
	if !reflect.DeepEqual(rows, wantRows) {
		t.Errorf("Read() rows = %v, want %v", rows, wantRows)
	}
}

func TestWrite(t *testing.T) {
	t.Parallel()

	var gotMethod, gotContentType string
	var gotQuery map[string]string
	var gotBody [][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotQuery = map[string]string{
			"action":    r.URL.Query().Get("action"),
			"sheet_url": r.URL.Query().Get("sheet_url"),
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
	}))
	defer srv.Close()

	values := [][]string{{"ID", "Name"}, {"1", "Alice"}}
	if err := newClient(t, srv.URL).Write(context.Background(), targetSheet, values); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("Write() used method %q, want POST", gotMethod)
	}
	if gotContentType != "application/json" {
		t.Errorf("Write() Content-Type = %q, want application/json", gotContentType)
	}
	wantQuery := map[string]string{"action": "write", "sheet_url": targetSheet}
	if !reflect.DeepEqual(gotQuery, wantQuery) {
		t.Errorf("Write() query = %v, want %v", gotQuery, wantQuery)
	}
	if !reflect.DeepEqual(gotBody, values) {
		t.Errorf("Write() body = %v, want %v", gotBody, values)
	}
}

func TestWriteNonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newClient(t, srv.URL).Write(context.Background(), targetSheet, [][]string{{"a"}})
	if err == nil {
		t.Fatal("Write() with 500 response should fail")
	}
}

func TestEmptySheetURL(t *testing.T) {
	t.Parallel()

	c := newClient(t, "http://localhost:0")
	if _, err := c.Read(context.Background(), ""); err == nil {
		t.Error("Read() with empty sheet URL should fail")
	}
	if err := c.Write(context.Background(), "", nil); err == nil {
		t.Error("Write() with empty sheet URL should fail")
	}
}
