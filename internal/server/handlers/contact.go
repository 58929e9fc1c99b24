package handlers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/impa/website/internal/auth"
	"github.com/impa/website/internal/contact"
	"github.com/impa/website/internal/server/dto"
	"github.com/impa/website/internal/server/reqctx"
)

// ContactHandler serves the contact form and its admin listing.
type ContactHandler struct {
	Svc *Services
}

// Submit stores and forwards a message.
func (h *ContactHandler) Submit(ctx context.Context, req *dto.ContactRequest) (*dto.Envelope[dto.ContactResponse], error) {
	meta := reqctx.Meta(ctx)
	m, err := h.Svc.Contact.Submit(ctx, contact.Input{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Subject:     req.Subject,
		Message:     req.Message,
		Locale:      req.Locale,
		IP:          meta.IP,
		CountryCode: meta.CountryCode,
	})
	if err != nil {
		var fe *contact.FieldError
		if errors.As(err, &fe) {
			return nil, dto.InvalidField(fe.Field, fe.Reason)
		}
		return nil, dto.StorageError("Failed to store message", err)
	}
	return dto.Created(dto.ContactResponse{Reference: m.ID.String(), Delivered: m.Delivered}, "Message received"), nil
}

// List returns the stored messages, newest first.
func (h *ContactHandler) List(_ context.Context, _ *auth.User, _ *dto.EmptyRequest) (*dto.Envelope[[]contact.Message], error) {
	return dto.List(h.Svc.Contact.List()), nil
}

// Delete removes a stored message.
func (h *ContactHandler) Delete(_ context.Context, _ *auth.User, req *dto.DeleteContactRequest) (*dto.Envelope[any], error) {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, dto.NotFound("Message")
	}
	ok, err := h.Svc.Contact.Delete(id)
	if err != nil {
		return nil, dto.StorageError("Failed to delete message", err)
	}
	if !ok {
		return nil, dto.NotFound("Message")
	}
	return dto.Done("Message deleted"), nil
}
