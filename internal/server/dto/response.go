package dto

import "net/http"

// Envelope is the standard success response.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitzero"`
	Message string `json:"message,omitempty"`
	Count   *int   `json:"count,omitempty"`

	status int
}

// HTTPStatus is the status code the envelope is written with.
func (e *Envelope[T]) HTTPStatus() int {
	if e.status == 0 {
		return http.StatusOK
	}
	return e.status
}

// OK wraps data in a 200 envelope.
func OK[T any](data T, message string) *Envelope[T] {
	return &Envelope[T]{Success: true, Data: data, Message: message}
}

// List wraps a collection and reports its length.
func List[T any](items []T) *Envelope[[]T] {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	return &Envelope[[]T]{Success: true, Data: items, Count: &n}
}

// Created wraps data in a 201 envelope.
func Created[T any](data T, message string) *Envelope[T] {
	return &Envelope[T]{Success: true, Data: data, Message: message, status: http.StatusCreated}
}

// Done is an envelope without data.
func Done(message string) *Envelope[any] {
	return &Envelope[any]{Success: true, Message: message}
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Code    ErrorCode      `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// APIInfo is served at /api.
type APIInfo struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
	Frontend  string            `json:"frontend"`
}

// HealthResponse is served at /api/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// RouteNotFound is the reply for unknown /api routes.
type RouteNotFound struct {
	Status          string   `json:"status"`
	Message         string   `json:"message"`
	AvailableRoutes []string `json:"availableRoutes"`
	Frontend        string   `json:"frontend"`
}

// UserResponse is the authenticated admin.
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token     string       `json:"token"`
	User      UserResponse `json:"user"`
	ExpiresAt string       `json:"expiresAt"`
}

// VerifyResponse is returned for a valid token.
type VerifyResponse struct {
	User      UserResponse `json:"user"`
	ExpiresAt string       `json:"expiresAt"`
}

// NewsHTMLResponse holds a rendered article.
type NewsHTMLResponse struct {
	ID   int64  `json:"id"`
	HTML string `json:"html"`
}

// ContactResponse acknowledges a contact message.
type ContactResponse struct {
	Reference string `json:"reference"`
	Delivered bool   `json:"delivered"`
}

// File is a download. The server writes Data as is with an attachment
// Content-Disposition.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// ImportResult reports the collection sizes after an import.
type ImportResult struct {
	News     int `json:"newsCount"`
	Projects int `json:"projectsCount"`
}

// PushKeyResponse is the VAPID public key browsers subscribe with.
type PushKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

// PushSubscribeResponse acknowledges a push subscription.
type PushSubscribeResponse struct {
	ID string `json:"id"`
}
