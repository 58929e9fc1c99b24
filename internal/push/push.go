// Package push sends Web Push notifications to site visitors when news is
// published.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/impa/website/internal/content"
	"github.com/impa/website/internal/events"
	"github.com/impa/website/internal/jsonldb"
	"github.com/maruel/ksid"
)

// ErrNotFound is returned when unsubscribing an unknown endpoint.
var ErrNotFound = errors.New("push subscription not found")

// Subscription is a browser push subscription.
type Subscription struct {
	ID       ksid.ID   `json:"id"`
	Endpoint string    `json:"endpoint"`
	P256dh   string    `json:"p256dh"`
	Auth     string    `json:"auth"`
	Locale   string    `json:"locale,omitempty"`
	Created  time.Time `json:"created"`
}

// Payload is the JSON the service worker receives.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
	Tag   string `json:"tag"`
}

// Keys is a VAPID key pair.
type Keys struct {
	Public     string
	Private    string
	Subscriber string
}

// sender delivers one message and returns the push service's status code.
type sender func(ctx context.Context, payload []byte, sub *Subscription) (int, error)

// Service stores subscriptions and fans notifications out to them.
type Service struct {
	table *jsonldb.Table[Subscription]
	send  sender
	wg    sync.WaitGroup
}

// NewService opens the subscription table at path (in memory when empty).
func NewService(path string, keys Keys) (*Service, error) {
	table, err := jsonldb.NewTable[Subscription](path)
	if err != nil {
		return nil, err
	}
	s := &Service{table: table}
	s.send = func(ctx context.Context, payload []byte, sub *Subscription) (int, error) {
		resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
		}, &webpush.Options{
			Subscriber:      keys.Subscriber,
			VAPIDPublicKey:  keys.Public,
			VAPIDPrivateKey: keys.Private,
			TTL:             86400,
		})
		if err != nil {
			return 0, err
		}
		_ = resp.Body.Close()
		return resp.StatusCode, nil
	}
	return s, nil
}

// Subscribe stores sub, replacing any subscription with the same endpoint.
func (s *Service) Subscribe(endpoint, p256dh, auth, locale string) (*Subscription, error) {
	if _, err := s.table.DeleteFunc(func(x *Subscription) bool { return x.Endpoint == endpoint }); err != nil {
		return nil, err
	}
	sub := Subscription{
		ID:       ksid.NewID(),
		Endpoint: endpoint,
		P256dh:   p256dh,
		Auth:     auth,
		Locale:   locale,
		Created:  time.Now().UTC(),
	}
	if err := s.table.Append(sub); err != nil {
		return nil, fmt.Errorf("failed to store push subscription: %w", err)
	}
	return &sub, nil
}

// Unsubscribe removes the subscription for endpoint.
func (s *Service) Unsubscribe(endpoint string) error {
	n, err := s.table.DeleteFunc(func(x *Subscription) bool { return x.Endpoint == endpoint })
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of subscriptions.
func (s *Service) Count() int {
	return s.table.Len()
}

// Broadcast sends p to every subscriber and returns how many accepted it.
// Subscriptions the push service reports as gone are deleted.
func (s *Service) Broadcast(ctx context.Context, p Payload) (int, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, sub := range s.table.All() {
		status, err := s.send(ctx, body, &sub)
		if err != nil {
			slog.WarnContext(ctx, "Web push send failed", "err", err, "endpoint", sub.Endpoint)
			continue
		}
		switch {
		case status == http.StatusGone || status == http.StatusNotFound:
			if _, err := s.table.DeleteFunc(func(x *Subscription) bool { return x.ID == sub.ID }); err != nil {
				slog.ErrorContext(ctx, "Failed to delete expired push subscription", "err", err, "id", sub.ID)
			}
		case status >= 200 && status < 300:
			delivered++
		default:
			slog.WarnContext(ctx, "Web push rejected", "status", status, "endpoint", sub.Endpoint)
		}
	}
	return delivered, nil
}

// Attach broadcasts whenever a news item becomes published, either added as
// published or updated from draft.
func (s *Service) Attach(n *events.Notifier) (detach func()) {
	u1 := n.Subscribe(events.NewsAdded, s.onNews)
	u2 := n.Subscribe(events.NewsUpdated, s.onNews)
	return func() {
		u1()
		u2()
	}
}

func (s *Service) onNews(ctx context.Context, e events.Event) error {
	item, ok := e.After.(content.NewsItem)
	if !ok || !item.Published() {
		return nil
	}
	if before, ok := e.Before.(content.NewsItem); ok && before.Published() {
		return nil
	}
	p := Payload{
		Title: item.Title,
		Body:  item.Summary,
		URL:   "/news/" + strconv.FormatInt(item.ID, 10),
		Tag:   "news-" + strconv.FormatInt(item.ID, 10),
	}
	// Delivery outlives the request that published the item.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	s.wg.Go(func() {
		defer cancel()
		if n, err := s.Broadcast(ctx, p); err != nil {
			slog.ErrorContext(ctx, "Failed to broadcast news", "err", err, "id", item.ID)
		} else {
			slog.InfoContext(ctx, "Broadcast news", "id", item.ID, "delivered", n)
		}
	})
	return nil
}

// Wait blocks until pending broadcasts finish.
func (s *Service) Wait() {
	s.wg.Wait()
}
