package infra

import (
	"errors"
	"testing"
)

func TestExtractMarker(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantMarker string
		wantBody   string
		wantErr    error
	}{
		{
			name:       "valid",
			query:      "\n--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7\nselect 1;\n",
			wantMarker: "8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7",
			wantBody:   "select 1;",
		},
		{name: "empty", query: "   ", wantErr: errEmptyQuery},
		{name: "no marker", query: "select 1;", wantErr: errMissingMarker},
		{name: "bad uuid", query: "--sql not-a-uuid\nselect 1;", wantErr: errMissingMarker},
		{name: "marker only", query: "--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7", wantErr: errEmptyQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			marker, body, err := extractMarker(tt.query)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if marker != tt.wantMarker {
				t.Fatalf("marker = %q, want %q", marker, tt.wantMarker)
			}
			if body != tt.wantBody {
				t.Fatalf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestErrorRowScan(t *testing.T) {
	want := errors.New("boom")
	if err := (errorRow{err: want}).Scan(); !errors.Is(err, want) {
		t.Fatalf("Scan = %v, want %v", err, want)
	}
}
