package handlers

import (
	"context"

	"github.com/impa/website/internal/auth"
	"github.com/impa/website/internal/content"
	"github.com/impa/website/internal/server/dto"
	"github.com/impa/website/internal/server/reqctx"
)

const newsNotFound = "News item"

// NewsHandler serves /api/news.
type NewsHandler struct {
	Svc *Services
}

// List returns the published news, or every item for the admin with ?all=1.
func (h *NewsHandler) List(ctx context.Context, req *dto.ListNewsRequest) (*dto.Envelope[[]content.NewsItem], error) {
	if req.All {
		if reqctx.User(ctx) == nil {
			return nil, dto.Unauthorized("Admin token required to list drafts")
		}
		return dto.List(h.Svc.Content.AdminNews()), nil
	}
	return dto.List(h.Svc.Content.AllNews()), nil
}

// Search filters the published news.
func (h *NewsHandler) Search(_ context.Context, req *dto.SearchNewsRequest) (*dto.Envelope[[]content.NewsItem], error) {
	return dto.List(h.Svc.Content.SearchNews(req.Q, content.NewsFilter{
		Category: req.Category,
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
		Fuzzy:    req.Fuzzy,
	})), nil
}

// visible returns the item if the caller may see it. Drafts are only visible
// to the admin.
func (h *NewsHandler) visible(ctx context.Context, rawID string) (content.NewsItem, error) {
	id, err := content.ParseNewsID(rawID)
	if err != nil {
		return content.NewsItem{}, dto.NotFound(newsNotFound)
	}
	item, err := h.Svc.Content.NewsByID(id)
	if err != nil {
		return content.NewsItem{}, contentError(err, newsNotFound, "Failed to fetch news item")
	}
	if !item.Published() && reqctx.User(ctx) == nil {
		return content.NewsItem{}, dto.NotFound(newsNotFound)
	}
	return item, nil
}

// Get returns one item.
func (h *NewsHandler) Get(ctx context.Context, req *dto.NewsIDRequest) (*dto.Envelope[content.NewsItem], error) {
	item, err := h.visible(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return dto.OK(item, ""), nil
}

// HTML returns the item's content rendered from Markdown.
func (h *NewsHandler) HTML(ctx context.Context, req *dto.NewsIDRequest) (*dto.Envelope[dto.NewsHTMLResponse], error) {
	item, err := h.visible(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	html, err := content.RenderNewsHTML(&item)
	if err != nil {
		return nil, dto.InternalWithError("Failed to render news item", err)
	}
	return dto.OK(dto.NewsHTMLResponse{ID: item.ID, HTML: html}, ""), nil
}

// Create adds an item.
func (h *NewsHandler) Create(ctx context.Context, _ *auth.User, req *dto.CreateNewsRequest) (*dto.Envelope[content.NewsItem], error) {
	item, err := h.Svc.Content.AddNews(ctx, content.NewsInput{
		Title:    req.Title,
		Summary:  req.Summary,
		Content:  req.Content,
		Date:     req.Date,
		Status:   req.Status,
		Category: req.Category,
		ReadTime: req.ReadTime,
		Photo:    req.Photo,
	})
	if err != nil {
		return nil, contentError(err, newsNotFound, "Failed to create news")
	}
	return dto.Created(item, "News created successfully"), nil
}

// Update merges the request into an item.
func (h *NewsHandler) Update(ctx context.Context, _ *auth.User, req *dto.UpdateNewsRequest) (*dto.Envelope[content.NewsItem], error) {
	id, err := content.ParseNewsID(req.ID)
	if err != nil {
		return nil, dto.NotFound(newsNotFound)
	}
	item, err := h.Svc.Content.UpdateNews(ctx, id, content.NewsPatch{
		Title:    req.Title,
		Summary:  req.Summary,
		Content:  req.Content,
		Date:     req.Date,
		Status:   req.Status,
		Category: req.Category,
		ReadTime: req.ReadTime,
		Photo:    req.Photo,
	})
	if err != nil {
		return nil, contentError(err, newsNotFound, "Failed to update news")
	}
	return dto.OK(item, "News updated successfully"), nil
}

// SetPhoto replaces or clears the photo of an item.
func (h *NewsHandler) SetPhoto(ctx context.Context, _ *auth.User, req *dto.PhotoRequest) (*dto.Envelope[content.NewsItem], error) {
	id, err := content.ParseNewsID(req.ID)
	if err != nil {
		return nil, dto.NotFound(newsNotFound)
	}
	item, err := h.Svc.Content.SetNewsPhoto(ctx, id, req.Photo)
	if err != nil {
		return nil, contentError(err, newsNotFound, "Failed to update news photo")
	}
	return dto.OK(item, "News photo updated successfully"), nil
}

// Delete removes an item.
func (h *NewsHandler) Delete(ctx context.Context, _ *auth.User, req *dto.NewsIDRequest) (*dto.Envelope[any], error) {
	id, err := content.ParseNewsID(req.ID)
	if err != nil {
		return nil, dto.NotFound(newsNotFound)
	}
	if err := h.Svc.Content.DeleteNews(ctx, id); err != nil {
		return nil, contentError(err, newsNotFound, "Failed to delete news")
	}
	return dto.Done("News deleted successfully"), nil
}
