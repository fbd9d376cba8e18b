package api

import (
	"encoding/json"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{"defaults", "", 50, 0, false},
		{"valid_custom", "limit=25&offset=10", 25, 10, false},
		{"limit_zero_rejected", "limit=0", 0, 0, true},
		{"negative_offset_rejected", "offset=-5", 0, 0, true},
		{"non_numeric_rejected", "limit=abc", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/?"+tt.query, nil)
			p, err := ParsePagination(req)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePagination: %v", err)
			}
			if p.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", p.Limit, tt.wantLimit)
			}
			if p.Offset != tt.wantOffset {
				t.Errorf("Offset = %d, want %d", p.Offset, tt.wantOffset)
			}
		})
	}
}

func TestQueryBool(t *testing.T) {
	tests := []struct {
		query  string
		want   bool
		wantOK bool
	}{
		{"flag=true", true, true},
		{"flag=1", true, true},
		{"flag=false", false, true},
		{"flag=maybe", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/?"+tt.query, nil)
		got, ok := QueryBool(req, "flag")
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("QueryBool(%q) = (%v, %v), want (%v, %v)", tt.query, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestQueryString(t *testing.T) {
	req := httptest.NewRequest("GET", "/?name=walk", nil)
	if v, ok := QueryString(req, "name"); !ok || v != "walk" {
		t.Errorf("QueryString = (%q, %v), want (walk, true)", v, ok)
	}
	if _, ok := QueryString(req, "missing"); ok {
		t.Error("QueryString found a missing param")
	}
}

func TestQueryStringList(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"types=progress,completed", []string{"progress", "completed"}},
		{"types=%20a%20,%20,b%20", []string{"a", "b"}},
		{"types=", nil},
		{"", nil},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/?"+tt.query, nil)
		if got := QueryStringList(req, "types"); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("QueryStringList(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, 201, map[string]string{"ok": "yes"})

	if w.Code != 201 {
		t.Errorf("status = %d, want 201", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["ok"] != "yes" {
		t.Errorf("body = %v", body)
	}
}

func TestWriteErrorDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorDetail(w, 502, "transcribing failed", "whisper returned 500")

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "transcribing failed" || resp.Detail != "whisper returned 500" {
		t.Errorf("resp = %+v", resp)
	}
}
