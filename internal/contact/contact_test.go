package contact

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/impa/website/internal/email"
)

type failingSender struct{}

func (failingSender) Send(context.Context, string, string, string) error {
	return errors.New("relay down")
}

func TestSubmit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contact.jsonl")
	sender := &email.Simulated{}
	svc, err := NewService(path, sender, "staff@impa.example")
	if err != nil {
		t.Fatal(err)
	}
	m, err := svc.Submit(t.Context(), Input{
		Name:    " سارة ",
		Email:   "sara@example.com",
		Subject: "استفسار",
		Message: "متى يبدأ المشروع؟",
	})
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "سارة" || m.Locale != "ar" || !m.Delivered {
		t.Errorf("got %+v", m)
	}
	sent := sender.Sent()
	if len(sent) != 2 || sent[0].To != "staff@impa.example" || sent[1].To != "sara@example.com" {
		t.Errorf("got %+v", sent)
	}

	reopened, err := NewService(path, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if got := reopened.List(); len(got) != 1 || got[0].ID != m.ID {
		t.Errorf("got %+v", got)
	}
	ok, err := reopened.Delete(m.ID)
	if err != nil || !ok {
		t.Errorf("Delete: %v, %v", ok, err)
	}
	if got := reopened.List(); len(got) != 0 {
		t.Errorf("got %d messages, want 0", len(got))
	}
}

func TestSubmit_DeliveryFailureStillStores(t *testing.T) {
	svc, err := NewService("", failingSender{}, "staff@impa.example")
	if err != nil {
		t.Fatal(err)
	}
	m, err := svc.Submit(t.Context(), Input{Name: "a", Email: "a@example.com", Message: "hi", Locale: "en"})
	if err != nil {
		t.Fatal(err)
	}
	if m.Delivered {
		t.Error("got delivered, want not delivered")
	}
	if len(svc.List()) != 1 {
		t.Error("message not stored")
	}
}

func TestSubmit_Validation(t *testing.T) {
	svc, err := NewService("", nil, "")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name  string
		in    Input
		field string
	}{
		{"no name", Input{Email: "a@example.com", Message: "m"}, "name"},
		{"no email", Input{Name: "n", Message: "m"}, "email"},
		{"bad email", Input{Name: "n", Email: "not an email", Message: "m"}, "email"},
		{"display name", Input{Name: "n", Email: "N <a@example.com>", Message: "m"}, "email"},
		{"no message", Input{Name: "n", Email: "a@example.com", Message: "  "}, "message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(t.Context(), tt.in)
			var fe *FieldError
			if !errors.As(err, &fe) || !errors.Is(err, ErrInvalid) {
				t.Fatalf("got %v, want a FieldError", err)
			}
			if fe.Field != tt.field {
				t.Errorf("got %s, want %s", fe.Field, tt.field)
			}
		})
	}
}
