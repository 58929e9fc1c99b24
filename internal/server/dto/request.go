package dto

import (
	"encoding/json"
	"strings"
	"time"
)

// Validatable is implemented by every request type. The server wrappers use
// it as a type constraint.
type Validatable interface {
	Validate() error
}

// EmptyRequest is used by routes without input.
type EmptyRequest struct{}

// Validate is a no-op.
func (r *EmptyRequest) Validate() error { return nil }

// --- Auth ---

// LoginRequest logs the admin in.
type LoginRequest struct {
	Username string `json:"username" jsonschema:"minLength=1"`
	Password string `json:"password" jsonschema:"minLength=1"`
}

// Validate checks both fields are present.
func (r *LoginRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return MissingField("username")
	}
	if r.Password == "" {
		return MissingField("password")
	}
	return nil
}

// --- News ---

// ListNewsRequest lists news. All requires the admin token and includes drafts.
type ListNewsRequest struct {
	All bool `query:"all" json:"-"`
}

// Validate is a no-op.
func (r *ListNewsRequest) Validate() error { return nil }

// NewsIDRequest addresses one news item.
type NewsIDRequest struct {
	ID string `path:"id" json:"-"`
}

// Validate checks the id is present.
func (r *NewsIDRequest) Validate() error {
	if r.ID == "" {
		return MissingField("id")
	}
	return nil
}

// CreateNewsRequest creates a news item. Omitted fields get defaults.
type CreateNewsRequest struct {
	Title    string  `json:"title" jsonschema:"minLength=1"`
	Summary  string  `json:"summary,omitempty" jsonschema:"description=Derived from the content when empty"`
	Content  string  `json:"content" jsonschema:"minLength=1"`
	Date     string  `json:"date,omitempty" jsonschema:"format=date"`
	Status   string  `json:"status,omitempty" jsonschema:"enum=published,enum=draft"`
	Category string  `json:"category,omitempty"`
	ReadTime string  `json:"readTime,omitempty"`
	Photo    *string `json:"photo,omitempty"`
}

// Validate checks the required fields and formats.
func (r *CreateNewsRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return MissingField("title")
	}
	if strings.TrimSpace(r.Content) == "" {
		return MissingField("content")
	}
	if err := validateDate("date", r.Date); err != nil {
		return err
	}
	return validateStatus(r.Status)
}

// UpdateNewsRequest changes some fields of a news item.
type UpdateNewsRequest struct {
	ID string `path:"id" json:"-"`
	// BodyID is accepted so clients can send back a whole item; the path wins.
	BodyID   json.RawMessage `json:"id,omitempty" jsonschema:"-"`
	Title    *string         `json:"title,omitempty"`
	Summary  *string         `json:"summary,omitempty"`
	Content  *string         `json:"content,omitempty"`
	Date     *string         `json:"date,omitempty" jsonschema:"format=date"`
	Status   *string         `json:"status,omitempty" jsonschema:"enum=published,enum=draft"`
	Category *string         `json:"category,omitempty"`
	ReadTime *string         `json:"readTime,omitempty"`
	Photo    *string         `json:"photo,omitempty"`
}

// Validate rejects blanking required fields.
func (r *UpdateNewsRequest) Validate() error {
	if r.ID == "" {
		return MissingField("id")
	}
	if r.Title != nil && strings.TrimSpace(*r.Title) == "" {
		return InvalidField("title", "must not be empty")
	}
	if r.Content != nil && strings.TrimSpace(*r.Content) == "" {
		return InvalidField("content", "must not be empty")
	}
	if r.Date != nil {
		if err := validateDate("date", *r.Date); err != nil {
			return err
		}
	}
	if r.Status != nil {
		return validateStatus(*r.Status)
	}
	return nil
}

// SearchNewsRequest searches published news.
type SearchNewsRequest struct {
	Q        string `query:"q" json:"-"`
	Category string `query:"category" json:"-"`
	DateFrom string `query:"dateFrom" json:"-"`
	DateTo   string `query:"dateTo" json:"-"`
	Fuzzy    bool   `query:"fuzzy" json:"-"`
}

// Validate checks the date bounds.
func (r *SearchNewsRequest) Validate() error {
	if err := validateDate("dateFrom", r.DateFrom); err != nil {
		return err
	}
	return validateDate("dateTo", r.DateTo)
}

// --- Projects ---

// ProjectIDRequest addresses one project.
type ProjectIDRequest struct {
	ID string `path:"id" json:"-"`
}

// Validate checks the id is present.
func (r *ProjectIDRequest) Validate() error {
	if r.ID == "" {
		return MissingField("id")
	}
	return nil
}

// CreateProjectRequest creates a project. Progress is clamped to 0..100.
type CreateProjectRequest struct {
	Name        string  `json:"name" jsonschema:"minLength=1"`
	Description string  `json:"description" jsonschema:"minLength=1"`
	Status      string  `json:"status,omitempty"`
	Type        string  `json:"type,omitempty"`
	StartDate   string  `json:"startDate,omitempty" jsonschema:"format=date"`
	Progress    int     `json:"progress,omitempty"`
	Photo       *string `json:"photo,omitempty"`
}

// Validate checks the required fields.
func (r *CreateProjectRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return MissingField("name")
	}
	if strings.TrimSpace(r.Description) == "" {
		return MissingField("description")
	}
	return validateDate("startDate", r.StartDate)
}

// UpdateProjectRequest changes some fields of a project.
type UpdateProjectRequest struct {
	ID          string          `path:"id" json:"-"`
	BodyID      json.RawMessage `json:"id,omitempty" jsonschema:"-"`
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Status      *string         `json:"status,omitempty"`
	Type        *string         `json:"type,omitempty"`
	StartDate   *string         `json:"startDate,omitempty" jsonschema:"format=date"`
	Progress    *int            `json:"progress,omitempty"`
	Photo       *string         `json:"photo,omitempty"`
}

// Validate rejects blanking required fields.
func (r *UpdateProjectRequest) Validate() error {
	if r.ID == "" {
		return MissingField("id")
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return InvalidField("name", "must not be empty")
	}
	if r.Description != nil && strings.TrimSpace(*r.Description) == "" {
		return InvalidField("description", "must not be empty")
	}
	if r.StartDate != nil {
		return validateDate("startDate", *r.StartDate)
	}
	return nil
}

// SearchProjectsRequest searches projects.
type SearchProjectsRequest struct {
	Q           string `query:"q" json:"-"`
	Status      string `query:"status" json:"-"`
	Type        string `query:"type" json:"-"`
	MinProgress *int   `query:"minProgress" json:"-"`
	MaxProgress *int   `query:"maxProgress" json:"-"`
	Fuzzy       bool   `query:"fuzzy" json:"-"`
}

// Validate checks the progress bounds.
func (r *SearchProjectsRequest) Validate() error {
	if r.MinProgress != nil && r.MaxProgress != nil && *r.MinProgress > *r.MaxProgress {
		return InvalidField("minProgress", "must not exceed maxProgress")
	}
	return nil
}

// --- Shared ---

// PhotoRequest sets or clears (null) the photo of a news item or project.
type PhotoRequest struct {
	ID    string  `path:"id" json:"-"`
	Photo *string `json:"photo"`
}

// Validate checks the id is present.
func (r *PhotoRequest) Validate() error {
	if r.ID == "" {
		return MissingField("id")
	}
	return nil
}

// ImportRequest replaces both collections. It is the document produced by
// GET /api/admin/export.
type ImportRequest struct {
	Version   string          `json:"version,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	News      json.RawMessage `json:"news" jsonschema:"type=array"`
	Projects  json.RawMessage `json:"projects" jsonschema:"type=array"`
}

// Validate checks both collections are present.
func (r *ImportRequest) Validate() error {
	if len(r.News) == 0 {
		return MissingField("news")
	}
	if len(r.Projects) == 0 {
		return MissingField("projects")
	}
	return nil
}

// HistoryRequest lists the most recent content commits.
type HistoryRequest struct {
	Limit int `query:"limit" json:"-"`
}

// Validate defaults and bounds the limit.
func (r *HistoryRequest) Validate() error {
	switch {
	case r.Limit < 0:
		return InvalidField("limit", "must not be negative")
	case r.Limit == 0:
		r.Limit = 50
	case r.Limit > 500:
		r.Limit = 500
	}
	return nil
}

// --- Contact ---

// ContactRequest is a contact form submission.
type ContactRequest struct {
	Name    string `json:"name" jsonschema:"minLength=1,maxLength=100"`
	Email   string `json:"email" jsonschema:"format=email"`
	Phone   string `json:"phone,omitempty"`
	Subject string `json:"subject,omitempty" jsonschema:"maxLength=200"`
	Message string `json:"message" jsonschema:"minLength=1,maxLength=5000"`
	Locale  string `json:"locale,omitempty" jsonschema:"enum=ar,enum=en"`
}

// Validate checks the required fields. The contact service checks formats.
func (r *ContactRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return MissingField("name")
	case strings.TrimSpace(r.Email) == "":
		return MissingField("email")
	case strings.TrimSpace(r.Message) == "":
		return MissingField("message")
	}
	return nil
}

// DeleteContactRequest removes a stored contact message.
type DeleteContactRequest struct {
	ID string `path:"id" json:"-"`
}

// Validate checks the id is present.
func (r *DeleteContactRequest) Validate() error {
	if r.ID == "" {
		return MissingField("id")
	}
	return nil
}

// --- Push ---

// PushSubscribeRequest is a browser PushSubscription.
type PushSubscribeRequest struct {
	Endpoint       string   `json:"endpoint" jsonschema:"format=uri"`
	ExpirationTime *float64 `json:"expirationTime,omitempty"`
	Keys           struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
	Locale string `json:"locale,omitempty" jsonschema:"enum=ar,enum=en"`
}

// Validate checks the endpoint and keys.
func (r *PushSubscribeRequest) Validate() error {
	switch {
	case !strings.HasPrefix(r.Endpoint, "https://"):
		return InvalidField("endpoint", "must be an https URL")
	case r.Keys.P256dh == "":
		return MissingField("keys.p256dh")
	case r.Keys.Auth == "":
		return MissingField("keys.auth")
	}
	return nil
}

// PushUnsubscribeRequest drops a subscription by endpoint.
type PushUnsubscribeRequest struct {
	Endpoint string `json:"endpoint" jsonschema:"format=uri"`
}

// Validate checks the endpoint is present.
func (r *PushUnsubscribeRequest) Validate() error {
	if r.Endpoint == "" {
		return MissingField("endpoint")
	}
	return nil
}

// --- Schema ---

// SchemaRequest names a request body.
type SchemaRequest struct {
	Name string `path:"name" json:"-"`
}

// Validate checks the schema exists.
func (r *SchemaRequest) Validate() error {
	if _, ok := Schemas[r.Name]; !ok {
		return NotFound("Schema " + r.Name)
	}
	return nil
}

// Schemas maps the names served at /api/schema/{name} to request bodies.
var Schemas = map[string]any{
	"login":          &LoginRequest{},
	"news":           &CreateNewsRequest{},
	"news-update":    &UpdateNewsRequest{},
	"project":        &CreateProjectRequest{},
	"project-update": &UpdateProjectRequest{},
	"photo":          &PhotoRequest{},
	"import":         &ImportRequest{},
	"contact":        &ContactRequest{},
	"push":           &PushSubscribeRequest{},
}

func validateDate(field, v string) error {
	if v == "" {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, v); err != nil {
		return InvalidField(field, "must be a YYYY-MM-DD date")
	}
	return nil
}

func validateStatus(v string) error {
	switch v {
	case "", "published", "draft":
		return nil
	}
	return InvalidField("status", "must be published or draft")
}
