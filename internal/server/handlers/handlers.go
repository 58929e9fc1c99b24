// Package handlers implements the HTTP API endpoints as typed functions that
// the server package adapts to net/http.
package handlers

import (
	"errors"

	"github.com/impa/website/internal/auth"
	"github.com/impa/website/internal/contact"
	"github.com/impa/website/internal/content"
	"github.com/impa/website/internal/history"
	"github.com/impa/website/internal/push"
	"github.com/impa/website/internal/server/dto"
)

// APIVersion is reported by /api and /api/health.
const APIVersion = "1.0.0"

// Services are the dependencies of the handlers. Push and History are nil
// when the feature is disabled.
type Services struct {
	Content *content.Store
	Auth    *auth.Service
	Contact *contact.Service
	Push    *push.Service
	History *history.Recorder
}

// Config holds the static settings the handlers report.
type Config struct {
	// Frontend is the site URL, reported by /api.
	Frontend string
	// VAPIDPublicKey is handed to browsers subscribing to push.
	VAPIDPublicKey string
}

// contentError maps a content store error to an API error. notFound names the
// resource, failed is the message for storage failures.
func contentError(err error, notFound, failed string) error {
	var ve *content.ValidationError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ve):
		return dto.BadRequest(ve.Error()).WithDetail("field", ve.Field).Wrap(err)
	case errors.Is(err, content.ErrNotFound):
		return dto.NotFound(notFound).Wrap(err)
	case errors.Is(err, content.ErrPersist):
		return dto.StorageError(failed, err)
	}
	return dto.InternalWithError(failed, err)
}
