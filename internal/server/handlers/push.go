package handlers

import (
	"context"
	"errors"

	"github.com/impa/website/internal/push"
	"github.com/impa/website/internal/server/dto"
)

// PushHandler serves /api/push.
type PushHandler struct {
	Svc *Services
	Cfg *Config
}

// Key returns the VAPID public key.
func (h *PushHandler) Key(_ context.Context, _ *dto.EmptyRequest) (*dto.Envelope[dto.PushKeyResponse], error) {
	if h.Svc.Push == nil {
		return nil, dto.Unavailable("Web push")
	}
	return dto.OK(dto.PushKeyResponse{PublicKey: h.Cfg.VAPIDPublicKey}, ""), nil
}

// Subscribe registers a browser subscription.
func (h *PushHandler) Subscribe(_ context.Context, req *dto.PushSubscribeRequest) (*dto.Envelope[dto.PushSubscribeResponse], error) {
	if h.Svc.Push == nil {
		return nil, dto.Unavailable("Web push")
	}
	sub, err := h.Svc.Push.Subscribe(req.Endpoint, req.Keys.P256dh, req.Keys.Auth, req.Locale)
	if err != nil {
		return nil, dto.StorageError("Failed to store subscription", err)
	}
	return dto.Created(dto.PushSubscribeResponse{ID: sub.ID.String()}, "Subscribed"), nil
}

// Unsubscribe drops a browser subscription.
func (h *PushHandler) Unsubscribe(_ context.Context, req *dto.PushUnsubscribeRequest) (*dto.Envelope[any], error) {
	if h.Svc.Push == nil {
		return nil, dto.Unavailable("Web push")
	}
	if err := h.Svc.Push.Unsubscribe(req.Endpoint); err != nil {
		if errors.Is(err, push.ErrNotFound) {
			return nil, dto.NotFound("Subscription")
		}
		return nil, dto.StorageError("Failed to remove subscription", err)
	}
	return dto.Done("Unsubscribed"), nil
}
