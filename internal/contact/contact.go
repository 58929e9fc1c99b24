// Package contact stores contact form messages and forwards them by mail.
package contact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/impa/website/internal/email"
	"github.com/impa/website/internal/jsonldb"
)

// Field limits, in runes.
const (
	maxNameLen    = 100
	maxSubjectLen = 200
	maxMessageLen = 5000
)

// Message is a stored contact form submission.
type Message struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Subject     string    `json:"subject"`
	Body        string    `json:"message"`
	Locale      string    `json:"locale"`
	IP          string    `json:"ip,omitempty"`
	CountryCode string    `json:"countryCode,omitempty"`
	Created     time.Time `json:"created"`
	// Delivered is false when forwarding the message failed.
	Delivered bool `json:"delivered"`
}

// Input is what a visitor submits.
type Input struct {
	Name    string
	Email   string
	Phone   string
	Subject string
	Message string
	Locale  string

	IP          string
	CountryCode string
}

// ErrInvalid is matched by every *FieldError.
var ErrInvalid = errors.New("invalid contact message")

// FieldError reports an unusable field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + " " + e.Reason
}

// Is makes errors.Is(err, ErrInvalid) true.
func (e *FieldError) Is(target error) bool {
	return target == ErrInvalid
}

// Service validates, stores and forwards messages.
type Service struct {
	table  *jsonldb.Table[Message]
	sender email.Sender
	to     string
	now    func() time.Time
}

// NewService opens the message table at path. An empty path keeps messages in
// memory. Messages are forwarded to to; when to is empty they are only stored.
func NewService(path string, sender email.Sender, to string) (*Service, error) {
	table, err := jsonldb.NewTable[Message](path)
	if err != nil {
		return nil, err
	}
	return &Service{table: table, sender: sender, to: to, now: time.Now}, nil
}

func validate(in *Input) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	switch {
	case in.Name == "":
		return &FieldError{"name", "is required"}
	case utf8.RuneCountInString(in.Name) > maxNameLen:
		return &FieldError{"name", "is too long"}
	case in.Email == "":
		return &FieldError{"email", "is required"}
	case in.Message == "":
		return &FieldError{"message", "is required"}
	case utf8.RuneCountInString(in.Message) > maxMessageLen:
		return &FieldError{"message", "is too long"}
	case utf8.RuneCountInString(in.Subject) > maxSubjectLen:
		return &FieldError{"subject", "is too long"}
	}
	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != in.Email {
		return &FieldError{"email", "is not a valid address"}
	}
	return nil
}

// Submit validates and stores in, then forwards it to the staff and sends a
// receipt to the visitor. A delivery failure is logged and recorded on the
// message; the message is still stored.
func (s *Service) Submit(ctx context.Context, in Input) (*Message, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}
	locale := email.ParseLocale(in.Locale)
	m := Message{
		ID:          uuid.New(),
		Name:        in.Name,
		Email:       in.Email,
		Phone:       in.Phone,
		Subject:     in.Subject,
		Body:        in.Message,
		Locale:      string(locale),
		IP:          in.IP,
		CountryCode: in.CountryCode,
		Created:     s.now().UTC(),
	}
	if err := s.deliver(ctx, &m, locale); err != nil {
		slog.WarnContext(ctx, "Failed to forward contact message", "id", m.ID, "err", err)
	} else {
		m.Delivered = s.sender != nil && s.to != ""
	}
	if err := s.table.Append(m); err != nil {
		return nil, fmt.Errorf("failed to store contact message: %w", err)
	}
	slog.InfoContext(ctx, "Contact message received", "id", m.ID, "delivered", m.Delivered)
	return &m, nil
}

func (s *Service) deliver(ctx context.Context, m *Message, locale email.Locale) error {
	if s.sender == nil || s.to == "" {
		return nil
	}
	subject, body := email.ContactEmail(locale, m.Subject, m.Name, m.Email, m.Phone, m.Body)
	if err := s.sender.Send(ctx, s.to, subject, body); err != nil {
		return err
	}
	subject, body = email.ReceiptEmail(locale, m.Name, m.ID.String())
	return s.sender.Send(ctx, m.Email, subject, body)
}

// List returns the stored messages, newest first.
func (s *Service) List() []Message {
	rows := s.table.All()
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows
}

// Delete removes the message id.
func (s *Service) Delete(id uuid.UUID) (bool, error) {
	n, err := s.table.DeleteFunc(func(m *Message) bool { return m.ID == id })
	return n > 0, err
}
