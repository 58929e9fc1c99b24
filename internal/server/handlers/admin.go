package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/impa/website/internal/auth"
	"github.com/impa/website/internal/content"
	"github.com/impa/website/internal/export"
	"github.com/impa/website/internal/history"
	"github.com/impa/website/internal/server/dto"
)

// AdminHandler serves /api/admin.
type AdminHandler struct {
	Svc *Services
	Now func() time.Time
}

func (h *AdminHandler) stamp() string {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	return now().UTC().Format("2006-01-02")
}

// Export downloads both collections as the JSON document Import accepts.
func (h *AdminHandler) Export(_ context.Context, _ *auth.User, _ *dto.EmptyRequest) (*dto.File, error) {
	data, err := h.Svc.Content.Export()
	if err != nil {
		return nil, dto.InternalWithError("Failed to export data", err)
	}
	return &dto.File{
		Name:        "impa-data-" + h.stamp() + ".json",
		ContentType: "application/json",
		Data:        data,
	}, nil
}

// ExportXLSX downloads both collections as a spreadsheet.
func (h *AdminHandler) ExportXLSX(_ context.Context, _ *auth.User, _ *dto.EmptyRequest) (*dto.File, error) {
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, h.Svc.Content.AdminNews(), h.Svc.Content.AdminProjects()); err != nil {
		return nil, dto.InternalWithError("Failed to export spreadsheet", err)
	}
	return &dto.File{
		Name:        "impa-data-" + h.stamp() + ".xlsx",
		ContentType: export.ContentType,
		Data:        buf.Bytes(),
	}, nil
}

// Import replaces both collections.
func (h *AdminHandler) Import(ctx context.Context, _ *auth.User, req *dto.ImportRequest) (*dto.Envelope[dto.ImportResult], error) {
	data, err := json.Marshal(struct {
		News     json.RawMessage `json:"news"`
		Projects json.RawMessage `json:"projects"`
	}{req.News, req.Projects})
	if err != nil {
		return nil, dto.InternalWithError("Failed to import data", err)
	}
	if err := h.Svc.Content.Import(ctx, data); err != nil {
		return nil, contentError(err, "Data", "Failed to import data")
	}
	return dto.OK(dto.ImportResult{
		News:     len(h.Svc.Content.AdminNews()),
		Projects: len(h.Svc.Content.AdminProjects()),
	}, "Data imported successfully"), nil
}

// Info reports storage statistics.
func (h *AdminHandler) Info(_ context.Context, _ *auth.User, _ *dto.EmptyRequest) (*dto.Envelope[content.StorageInfo], error) {
	return dto.OK(h.Svc.Content.Info(), ""), nil
}

// Health checks the storage round trip and the loaded collections.
func (h *AdminHandler) Health(ctx context.Context, _ *auth.User, _ *dto.EmptyRequest) (*dto.Envelope[content.HealthReport], error) {
	return dto.OK(h.Svc.Content.Health(ctx), ""), nil
}

// Reload discards the in-memory state and reloads it from storage.
func (h *AdminHandler) Reload(ctx context.Context, _ *auth.User, _ *dto.EmptyRequest) (*dto.Envelope[any], error) {
	if err := h.Svc.Content.ForceReload(ctx); err != nil {
		return nil, contentError(err, "Data", "Failed to reload data")
	}
	return dto.Done("Data reloaded from storage"), nil
}

// Refresh rereads storage.
func (h *AdminHandler) Refresh(ctx context.Context, _ *auth.User, _ *dto.EmptyRequest) (*dto.Envelope[any], error) {
	if err := h.Svc.Content.Refresh(ctx); err != nil {
		return nil, contentError(err, "Data", "Failed to refresh data")
	}
	return dto.Done("Data refreshed from storage"), nil
}

// Reset clears storage and restores the seed content.
func (h *AdminHandler) Reset(ctx context.Context, _ *auth.User, _ *dto.EmptyRequest) (*dto.Envelope[any], error) {
	if err := h.Svc.Content.Reset(ctx); err != nil {
		return nil, contentError(err, "Data", "Failed to reset data")
	}
	return dto.Done("Data reset to defaults"), nil
}

// LoginAttempts returns the login audit, newest first.
func (h *AdminHandler) LoginAttempts(_ context.Context, _ *auth.User, _ *dto.EmptyRequest) (*dto.Envelope[[]auth.LoginAttempt], error) {
	return dto.List(h.Svc.Auth.LoginAttempts()), nil
}

// History returns the most recent content commits.
func (h *AdminHandler) History(_ context.Context, _ *auth.User, req *dto.HistoryRequest) (*dto.Envelope[[]history.Commit], error) {
	if h.Svc.History == nil {
		return nil, dto.Unavailable("History")
	}
	commits, err := h.Svc.History.Log(req.Limit)
	if err != nil {
		return nil, dto.InternalWithError("Failed to read history", err)
	}
	return dto.List(commits), nil
}
