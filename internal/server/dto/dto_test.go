package dto

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestAPIError(t *testing.T) {
	cause := errors.New("disk full")
	err := StorageError("Failed to save news", cause)
	if err.StatusCode() != http.StatusInternalServerError || err.Code() != ErrorCodeStorageError {
		t.Errorf("got %d %s", err.StatusCode(), err.Code())
	}
	if err.Message() != "Failed to save news" {
		t.Errorf("got %q, the cause must not leak into the message", err.Message())
	}
	if err.Error() != "Failed to save news: disk full" {
		t.Errorf("got %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap must expose the cause")
	}
	var ews ErrorWithStatus = MissingField("title")
	if ews.Details()["field"] != "title" || ews.StatusCode() != http.StatusBadRequest {
		t.Errorf("got %+v", ews.Details())
	}
	rl := RateLimitExceeded(12)
	if rl.StatusCode() != http.StatusTooManyRequests || rl.Details()["retryAfter"] != 12 {
		t.Errorf("got %d %v", rl.StatusCode(), rl.Details())
	}
}

func TestEnvelope(t *testing.T) {
	tests := []struct {
		name   string
		env    interface{ HTTPStatus() int }
		status int
		want   string
	}{
		{"ok", OK(map[string]int{"id": 1}, ""), 200, `{"success":true,"data":{"id":1}}`},
		{"created", Created("x", "News created successfully"), 201, `{"success":true,"data":"x","message":"News created successfully"}`},
		{"done", Done("News deleted successfully"), 200, `{"success":true,"message":"News deleted successfully"}`},
		{"empty list", List[int](nil), 200, `{"success":true,"data":[],"count":0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.env.HTTPStatus(); got != tt.status {
				t.Errorf("got %d, want %d", got, tt.status)
			}
			b, err := json.Marshal(tt.env)
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != tt.want {
				t.Errorf("got %s, want %s", b, tt.want)
			}
		})
	}
}

func TestRequestValidate(t *testing.T) {
	s := func(v string) *string { return &v }
	n := func(v int) *int { return &v }
	tests := []struct {
		name string
		req  Validatable
		code ErrorCode
	}{
		{"login ok", &LoginRequest{Username: "impa2025", Password: "1234"}, ""},
		{"login no password", &LoginRequest{Username: "impa2025"}, ErrorCodeMissingField},
		{"news ok", &CreateNewsRequest{Title: "t", Content: "c", Date: "2025-01-02"}, ""},
		{"news no title", &CreateNewsRequest{Title: " ", Content: "c"}, ErrorCodeMissingField},
		{"news bad date", &CreateNewsRequest{Title: "t", Content: "c", Date: "02/01/2025"}, ErrorCodeInvalidFormat},
		{"news bad status", &CreateNewsRequest{Title: "t", Content: "c", Status: "archived"}, ErrorCodeInvalidFormat},
		{"news update empty", &UpdateNewsRequest{ID: "1"}, ""},
		{"news update blank title", &UpdateNewsRequest{ID: "1", Title: s("")}, ErrorCodeInvalidFormat},
		{"news update draft", &UpdateNewsRequest{ID: "1", Status: s("draft")}, ""},
		{"search bad date", &SearchNewsRequest{DateFrom: "yesterday"}, ErrorCodeInvalidFormat},
		{"project ok", &CreateProjectRequest{Name: "n", Description: "d", Progress: 150}, ""},
		{"project no description", &CreateProjectRequest{Name: "n"}, ErrorCodeMissingField},
		{"project update blank name", &UpdateProjectRequest{ID: "PRJ-001", Name: s(" ")}, ErrorCodeInvalidFormat},
		{"project search range", &SearchProjectsRequest{MinProgress: n(80), MaxProgress: n(20)}, ErrorCodeInvalidFormat},
		{"import missing projects", &ImportRequest{News: json.RawMessage(`[]`)}, ErrorCodeMissingField},
		{"contact no message", &ContactRequest{Name: "n", Email: "a@b.c"}, ErrorCodeMissingField},
		{"push http", &PushSubscribeRequest{Endpoint: "http://push.example"}, ErrorCodeInvalidFormat},
		{"schema unknown", &SchemaRequest{Name: "nope"}, ErrorCodeNotFound},
		{"schema known", &SchemaRequest{Name: "news"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.code == "" {
				if err != nil {
					t.Fatalf("got %v, want nil", err)
				}
				return
			}
			var ews ErrorWithStatus
			if !errors.As(err, &ews) {
				t.Fatalf("got %v, want an ErrorWithStatus", err)
			}
			if ews.Code() != tt.code {
				t.Errorf("got %s, want %s", ews.Code(), tt.code)
			}
		})
	}
}

func TestUpdateAcceptsBodyID(t *testing.T) {
	var req UpdateNewsRequest
	d := json.NewDecoder(strings.NewReader(`{"id":1700000000000,"title":"t"}`))
	d.DisallowUnknownFields()
	if err := d.Decode(&req); err != nil {
		t.Fatal(err)
	}
	if req.Title == nil || *req.Title != "t" {
		t.Errorf("got %+v", req)
	}
}
