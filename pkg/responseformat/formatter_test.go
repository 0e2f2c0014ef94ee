package responseformat

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

type table struct {
	Name string `json:"name"`
}

func (t table) CSV() ([]byte, error) {
	return []byte("name\n" + t.Name + "\n"), nil
}

func TestWriteResponse(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		data        any
		contentType string
	}{
		{"default json", "", table{Name: "lake"}, "application/json"},
		{"unknown format is json", "?format=xml", table{Name: "lake"}, "application/json"},
		{"msgpack", "?format=msgpack", table{Name: "lake"}, "application/x-msgpack"},
		{"csv", "?format=csv", table{Name: "lake"}, "text/csv"},
		{"csv on non-tabular falls back", "?format=csv", map[string]int{"n": 1}, "application/json"},
	}

	f := NewFormatter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil)
			if err := f.WriteResponse(rec, req, http.StatusCreated, tt.data); err != nil {
				t.Fatal(err)
			}
			if rec.Code != http.StatusCreated {
				t.Errorf("status = %d, expected %d", rec.Code, http.StatusCreated)
			}
			if ct := rec.Header().Get("Content-Type"); ct != tt.contentType {
				t.Errorf("Content-Type = %q, expected %q", ct, tt.contentType)
			}
			if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
				t.Error("missing CORS header")
			}
		})
	}
}

func TestWriteResponseMsgPackUsesJSONTags(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x?format=msgpack", nil)
	if err := NewFormatter().WriteResponse(rec, req, http.StatusOK, table{Name: "lake"}); err != nil {
		t.Fatal(err)
	}

	var got map[string]string
	if err := msgpack.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["name"] != "lake" {
		t.Errorf("decoded = %v, expected name=lake", got)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x?format=csv", nil)
	if err := NewFormatter().WriteError(rec, req, http.StatusNotFound, errors.New("dataset not found")); err != nil {
		t.Fatal(err)
	}

	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNotFound || body.Status != http.StatusNotFound || body.Error != "dataset not found" {
		t.Errorf("got %d %+v", rec.Code, body)
	}
}

func TestWriteRawJSON(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/runs/1", nil)
	if err := NewFormatter().WriteRawJSON(rec, req, []byte(`{"n":1}`), &JSONWrapper{LastUpdated: at}); err != nil {
		t.Fatal(err)
	}

	var got struct {
		LastUpdated string         `json:"lastUpdated"`
		Data        map[string]int `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	if got.LastUpdated != "2024-03-01T12:00:00Z" || got.Data["n"] != 1 {
		t.Errorf("got %+v", got)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/runs/1?format=msgpack", nil)
	if err := NewFormatter().WriteRawJSON(rec, req, []byte(`{"n":1}`), nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "msgpack") {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
}
