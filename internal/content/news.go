package content

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/impa/website/internal/events"
)

func cloneNews(n NewsItem) NewsItem {
	if n.Photo != nil {
		n.Photo = ptr(*n.Photo)
	}
	return n
}

func cloneNewsList(in []NewsItem, keep func(*NewsItem) bool) []NewsItem {
	out := make([]NewsItem, 0, len(in))
	for i := range in {
		if keep == nil || keep(&in[i]) {
			out = append(out, cloneNews(in[i]))
		}
	}
	return out
}

// AllNews returns the published news, newest first as stored.
func (s *Store) AllNews() []NewsItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneNewsList(s.news, (*NewsItem).Published)
}

// AdminNews returns every news item including drafts.
func (s *Store) AdminNews() []NewsItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneNewsList(s.news, nil)
}

// NewsByID returns the news item with the given ID, drafts included.
func (s *Store) NewsByID(id int64) (NewsItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.newsIndexLocked(id)
	if i < 0 {
		return NewsItem{}, newsNotFound(id)
	}
	return cloneNews(s.news[i]), nil
}

func (s *Store) newsIndexLocked(id int64) int {
	return slices.IndexFunc(s.news, func(n NewsItem) bool { return n.ID == id })
}

func newsNotFound(id int64) error {
	return fmt.Errorf("news %d: %w", id, ErrNotFound)
}

// AddNews creates a news item and prepends it to the collection.
func (s *Store) AddNews(ctx context.Context, in NewsInput) (NewsItem, error) {
	if err := requireText("news", "title", in.Title); err != nil {
		return NewsItem{}, err
	}
	if err := requireText("news", "content", in.Content); err != nil {
		return NewsItem{}, err
	}
	photo, err := photoInput("news", in.Photo)
	if err != nil {
		return NewsItem{}, err
	}
	if err := validateDate("news", "date", in.Date); err != nil {
		return NewsItem{}, err
	}
	if err := validateNewsStatus(in.Status); err != nil {
		return NewsItem{}, err
	}
	var created NewsItem
	err = s.mutate(ctx, "addNews", func() ([]events.Event, error) {
		n := NormalizeNews(NewsItem{
			ID:       s.nextNewsIDLocked(),
			Title:    in.Title,
			Summary:  in.Summary,
			Content:  in.Content,
			Date:     in.Date,
			Status:   in.Status,
			Category: in.Category,
			ReadTime: in.ReadTime,
			Photo:    photo,
		}, s.today())
		if err := ValidateNews(&n); err != nil {
			return nil, err
		}
		s.news = slices.Insert(s.news, 0, n)
		created = cloneNews(n)
		return []events.Event{{Kind: events.NewsAdded, After: cloneNews(n)}}, nil
	})
	if err != nil {
		return NewsItem{}, err
	}
	return created, nil
}

// UpdateNews applies p to the news item id. The ID never changes.
func (s *Store) UpdateNews(ctx context.Context, id int64, p NewsPatch) (NewsItem, error) {
	if p.Date != nil {
		if err := validateDate("news", "date", *p.Date); err != nil {
			return NewsItem{}, err
		}
	}
	if p.Status != nil {
		if err := validateNewsStatus(*p.Status); err != nil {
			return NewsItem{}, err
		}
	}
	var photo *string
	if p.Photo != nil {
		var err error
		if photo, err = photoInput("news", p.Photo); err != nil {
			return NewsItem{}, err
		}
	}
	var updated NewsItem
	err := s.mutate(ctx, "updateNews", func() ([]events.Event, error) {
		i := s.newsIndexLocked(id)
		if i < 0 {
			return nil, newsNotFound(id)
		}
		before := cloneNews(s.news[i])
		n := s.news[i]
		setTrimmed(&n.Title, p.Title)
		setTrimmed(&n.Summary, p.Summary)
		setTrimmed(&n.Content, p.Content)
		setTrimmed(&n.Date, p.Date)
		setTrimmed(&n.Status, p.Status)
		setTrimmed(&n.Category, p.Category)
		setTrimmed(&n.ReadTime, p.ReadTime)
		if p.Photo != nil {
			n.Photo = photo
		}
		if err := ValidateNews(&n); err != nil {
			return nil, err
		}
		s.news[i] = n
		updated = cloneNews(n)
		return []events.Event{{Kind: events.NewsUpdated, Before: before, After: cloneNews(n)}}, nil
	})
	if err != nil {
		return NewsItem{}, err
	}
	return updated, nil
}

// DeleteNews removes the news item id.
func (s *Store) DeleteNews(ctx context.Context, id int64) error {
	return s.mutate(ctx, "deleteNews", func() ([]events.Event, error) {
		i := s.newsIndexLocked(id)
		if i < 0 {
			return nil, newsNotFound(id)
		}
		removed := cloneNews(s.news[i])
		s.news = slices.Delete(s.news, i, i+1)
		return []events.Event{{Kind: events.NewsDeleted, Before: removed, After: map[string]int64{"id": id}}}, nil
	})
}

// SetNewsPhoto replaces the photo of news item id. A nil or empty photo
// clears it; an unusable path is a validation error.
func (s *Store) SetNewsPhoto(ctx context.Context, id int64, photo *string) (NewsItem, error) {
	photo, err := photoInput("news", photo)
	if err != nil {
		return NewsItem{}, err
	}
	var updated NewsItem
	err = s.mutate(ctx, "setNewsPhoto", func() ([]events.Event, error) {
		i := s.newsIndexLocked(id)
		if i < 0 {
			return nil, newsNotFound(id)
		}
		old := s.news[i].Photo
		s.news[i].Photo = photo
		updated = cloneNews(s.news[i])
		return []events.Event{{Kind: events.NewsPhotoUpdated, After: PhotoChange{
			ID:       strconv.FormatInt(id, 10),
			OldPhoto: old,
			NewPhoto: updated.Photo,
		}}}, nil
	})
	if err != nil {
		return NewsItem{}, err
	}
	return updated, nil
}

func setTrimmed(dst, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
