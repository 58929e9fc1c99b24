package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/impa/website/internal/events"
	"github.com/impa/website/internal/kv"
)

// healthKey is written and removed by Health to check the backend.
const healthKey = "impaHealthCheck"

func (s *Store) initLocked(ctx context.Context) {
	ver, err := s.kv.Get(ctx, KeyVersion)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		slog.ErrorContext(ctx, "Failed to read data version", "err", err)
	}
	switch {
	case string(ver) == Version:
		s.news = s.loadNewsLocked(ctx)
		s.projects = s.loadProjectsLocked(ctx)
	case s.readOnly:
		slog.WarnContext(ctx, "Data version mismatch, showing defaults", "stored", string(ver), "current", Version)
		s.news, s.projects = DefaultNews(), DefaultProjects()
	default:
		slog.InfoContext(ctx, "Data version mismatch, clearing storage", "stored", string(ver), "current", Version)
		if err := s.clearLocked(ctx); err != nil {
			slog.ErrorContext(ctx, "Failed to clear storage", "err", err)
		}
		s.news = s.loadNewsLocked(ctx)
		s.projects = s.loadProjectsLocked(ctx)
	}
	if err := ValidateCollections(s.news, s.projects); err != nil {
		slog.WarnContext(ctx, "Stored content failed validation, using defaults", "err", err)
		s.news, s.projects = DefaultNews(), DefaultProjects()
	}
	s.observeIDsLocked()
	if !s.readOnly {
		if err := s.saveLocked(ctx); err != nil {
			slog.ErrorContext(ctx, "Failed to save initial content", "err", err)
		}
	}
	slog.InfoContext(ctx, "Content loaded", "news", len(s.news), "projects", len(s.projects), "backend", s.kv.Name(), "readOnly", s.readOnly)
}

// readItems returns the object entries of the JSON array stored under key.
// ok is false when the key is absent or unreadable; callers then use the seed.
func (s *Store) readItems(ctx context.Context, key string) (items []map[string]any, ok bool) {
	b, err := s.kv.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read stored content", "key", key, "err", err)
		return nil, false
	}
	items, skipped, err := decodeObjects(b)
	if err != nil {
		slog.WarnContext(ctx, "Stored content is unreadable", "key", key, "err", err)
		return nil, false
	}
	if skipped > 0 {
		slog.WarnContext(ctx, "Dropped malformed stored entries", "key", key, "count", skipped)
	}
	return items, true
}

func (s *Store) loadNewsLocked(ctx context.Context) []NewsItem {
	items, ok := s.readItems(ctx, KeyNews)
	if !ok {
		return DefaultNews()
	}
	return newsFromObjects(items, s.today())
}

func (s *Store) loadProjectsLocked(ctx context.Context) []ProjectItem {
	items, ok := s.readItems(ctx, KeyProjects)
	if !ok {
		return DefaultProjects()
	}
	return projectsFromObjects(items, s.today())
}

// saveLocked validates and writes both collections and the version marker.
//
// Nothing is written when validation fails. When a write fails, the keys
// already written in this call are restored to their previous bytes.
func (s *Store) saveLocked(ctx context.Context) error {
	if err := ValidateCollections(s.news, s.projects); err != nil {
		return err
	}
	newsB, err := json.Marshal(nonNil(s.news))
	if err != nil {
		return fmt.Errorf("failed to encode news: %w", err)
	}
	projectsB, err := json.Marshal(nonNil(s.projects))
	if err != nil {
		return fmt.Errorf("failed to encode projects: %w", err)
	}
	writes := []struct {
		key string
		val []byte
	}{
		{KeyNews, newsB},
		{KeyProjects, projectsB},
		{KeyVersion, []byte(Version)},
	}
	for i, w := range writes {
		if err := s.kv.Set(ctx, w.key, w.val); err != nil {
			for _, done := range writes[:i] {
				s.undoWriteLocked(ctx, done.key)
			}
			return fmt.Errorf("%w: %w", ErrPersist, err)
		}
	}
	for _, w := range writes {
		s.persisted[w.key] = w.val
	}
	s.lastSaved = s.now()
	return nil
}

func (s *Store) undoWriteLocked(ctx context.Context, key string) {
	var err error
	if prev, ok := s.persisted[key]; ok {
		err = s.kv.Set(ctx, key, prev)
	} else {
		err = s.kv.Delete(ctx, key)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to undo partial save", "key", key, "err", err)
	}
}

func (s *Store) clearLocked(ctx context.Context) error {
	var errs []error
	for _, k := range Keys {
		if err := s.kv.Delete(ctx, k); err != nil {
			errs = append(errs, err)
			continue
		}
		delete(s.persisted, k)
	}
	return errors.Join(errs...)
}

// Refresh reloads both collections from storage, discarding in-memory state.
//
// If the reloaded data fails validation the previous state is kept.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	prev := s.countsLocked()
	snap := s.snapshotLocked()
	s.news = s.loadNewsLocked(ctx)
	s.projects = s.loadProjectsLocked(ctx)
	if err := ValidateCollections(s.news, s.projects); err != nil {
		s.restoreLocked(snap)
		s.mu.Unlock()
		slog.ErrorContext(ctx, "Refreshed content failed validation, keeping previous state", "err", err)
		return err
	}
	s.observeIDsLocked()
	cur := s.countsLocked()
	s.mu.Unlock()
	slog.InfoContext(ctx, "Content refreshed", "news", cur.News, "projects", cur.Projects)
	s.notifier.Notify(ctx, events.Event{Kind: events.DataRefreshed, Before: prev, After: cur})
	return nil
}

// ForceReload clears storage and reinstates the seed collections.
//
// When clearing fails partway the current collections are written back, so
// storage matches memory again.
func (s *Store) ForceReload(ctx context.Context) error {
	if s.readOnly {
		return ErrReadOnly
	}
	s.mu.Lock()
	snap := s.snapshotLocked()
	if err := s.clearLocked(ctx); err != nil {
		if err2 := s.saveLocked(ctx); err2 != nil {
			slog.ErrorContext(ctx, "Failed to restore content after failed clear", "err", err2)
		}
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.news, s.projects = DefaultNews(), DefaultProjects()
	s.observeIDsLocked()
	if err := s.saveLocked(ctx); err != nil {
		s.restoreLocked(snap)
		if err2 := s.saveLocked(ctx); err2 != nil {
			slog.ErrorContext(ctx, "Failed to restore content after failed reload", "err", err2)
		}
		s.mu.Unlock()
		return err
	}
	counts := s.countsLocked()
	s.mu.Unlock()
	slog.InfoContext(ctx, "Content force reloaded", "news", counts.News, "projects", counts.Projects)
	s.notifier.Notify(ctx, events.Event{Kind: events.DataSaved, After: counts})
	s.notifier.Notify(ctx, events.Event{Kind: events.DataForceReloaded, After: counts})
	return nil
}

// Reset is ForceReload.
func (s *Store) Reset(ctx context.Context) error {
	return s.ForceReload(ctx)
}

// ExportData is the document produced by Export and accepted by Import.
type ExportData struct {
	Version   string        `json:"version"`
	Timestamp time.Time     `json:"timestamp"`
	News      []NewsItem    `json:"news"`
	Projects  []ProjectItem `json:"projects"`
}

// Export serializes both collections as indented JSON.
func (s *Store) Export() ([]byte, error) {
	s.mu.RLock()
	d := ExportData{
		Version:   Version,
		Timestamp: s.now().UTC(),
		News:      nonNil(s.news),
		Projects:  nonNil(s.projects),
	}
	b, err := json.MarshalIndent(d, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return b, nil
}

// Import replaces both collections with the content of an export document.
//
// Records are normalized like stored data. On validation or storage failure
// the previous collections are kept.
func (s *Store) Import(ctx context.Context, data []byte) error {
	var in struct {
		News     json.RawMessage `json:"news"`
		Projects json.RawMessage `json:"projects"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return &ValidationError{Resource: "import", Field: "document", Reason: "is not valid JSON"}
	}
	newsObjs, _, errN := decodeObjects(in.News)
	projectObjs, _, errP := decodeObjects(in.Projects)
	if errN != nil || errP != nil {
		return &ValidationError{Resource: "import", Field: "news and projects", Reason: "must both be arrays"}
	}
	today := s.today()
	news := newsFromObjects(newsObjs, today)
	projects := projectsFromObjects(projectObjs, today)
	return s.mutate(ctx, "import", func() ([]events.Event, error) {
		s.news, s.projects = news, projects
		s.observeIDsLocked()
		return []events.Event{{Kind: events.DataImported, After: s.countsLocked()}}, nil
	})
}

// StorageInfo summarizes what is stored.
type StorageInfo struct {
	Available      bool      `json:"available"`
	Version        string    `json:"version"`
	NewsSize       string    `json:"newsSize"`
	ProjectsSize   string    `json:"projectsSize"`
	TotalSize      string    `json:"totalSize"`
	NewsBytes      int       `json:"newsBytes"`
	ProjectsBytes  int       `json:"projectsBytes"`
	NewsCount      int       `json:"newsCount"`
	ProjectsCount  int       `json:"projectsCount"`
	AvgNewsSize    string    `json:"avgNewsSize"`
	AvgProjectSize string    `json:"avgProjectSize"`
	StorageType    string    `json:"storageType"`
	StorageKeys    []string  `json:"storageKeys"`
	LastSaved      time.Time `json:"lastSaved"`
	Error          string    `json:"error,omitempty"`
}

// Info reports sizes and counts of the collections.
func (s *Store) Info() StorageInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := StorageInfo{
		Available:     true,
		Version:       Version,
		NewsCount:     len(s.news),
		ProjectsCount: len(s.projects),
		StorageType:   s.kv.Name(),
		StorageKeys:   Keys,
		LastSaved:     s.lastSaved,
	}
	newsB, err1 := json.Marshal(nonNil(s.news))
	projectsB, err2 := json.Marshal(nonNil(s.projects))
	if err := errors.Join(err1, err2); err != nil {
		info.Error = err.Error()
		return info
	}
	info.NewsBytes, info.ProjectsBytes = len(newsB), len(projectsB)
	info.NewsSize = FormatBytes(len(newsB))
	info.ProjectsSize = FormatBytes(len(projectsB))
	info.TotalSize = FormatBytes(len(newsB) + len(projectsB))
	info.AvgNewsSize = FormatBytes(avg(len(newsB), len(s.news)))
	info.AvgProjectSize = FormatBytes(avg(len(projectsB), len(s.projects)))
	return info
}

func avg(total, n int) int {
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(total) / float64(n)))
}

// Health status values.
const (
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
)

// HealthReport is the result of Health.
type HealthReport struct {
	Status    string       `json:"status"`
	Checks    HealthChecks `json:"checks"`
	Issues    []string     `json:"issues,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// HealthChecks groups the individual checks.
type HealthChecks struct {
	Storage struct {
		Available bool   `json:"available"`
		Type      string `json:"type"`
		Error     string `json:"error,omitempty"`
	} `json:"storage"`
	DataIntegrity struct {
		Valid         bool   `json:"valid"`
		NewsCount     int    `json:"newsCount"`
		ProjectsCount int    `json:"projectsCount"`
		Error         string `json:"error,omitempty"`
	} `json:"dataIntegrity"`
	MemoryUsage struct {
		TotalSize    string `json:"totalSize"`
		NewsSize     string `json:"newsSize"`
		ProjectsSize string `json:"projectsSize"`
	} `json:"memoryUsage"`
}

// Health tests the backend with a write/read/delete round trip, or a read when
// read-only, and checks the integrity of the in-memory collections.
func (s *Store) Health(ctx context.Context) HealthReport {
	r := HealthReport{Status: HealthHealthy, Timestamp: s.now().UTC()}
	r.Checks.Storage.Type = s.kv.Name()
	if err := s.checkStorage(ctx); err != nil {
		r.Checks.Storage.Error = err.Error()
		r.Issues = append(r.Issues, "Storage not available")
	} else {
		r.Checks.Storage.Available = true
	}

	s.mu.RLock()
	err := ValidateCollections(s.news, s.projects)
	r.Checks.DataIntegrity.NewsCount = len(s.news)
	r.Checks.DataIntegrity.ProjectsCount = len(s.projects)
	s.mu.RUnlock()
	if err != nil {
		r.Checks.DataIntegrity.Error = err.Error()
		r.Issues = append(r.Issues, "Data integrity check failed")
	} else {
		r.Checks.DataIntegrity.Valid = true
	}

	info := s.Info()
	r.Checks.MemoryUsage.TotalSize = info.TotalSize
	r.Checks.MemoryUsage.NewsSize = info.NewsSize
	r.Checks.MemoryUsage.ProjectsSize = info.ProjectsSize
	if len(r.Issues) > 0 {
		r.Status = HealthUnhealthy
	}
	return r
}

func (s *Store) checkStorage(ctx context.Context) error {
	if s.readOnly {
		_, err := s.kv.Get(ctx, KeyVersion)
		if errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		return err
	}
	want := []byte(strconv.FormatInt(s.now().UnixNano(), 10))
	if err := s.kv.Set(ctx, healthKey, want); err != nil {
		return err
	}
	got, err := s.kv.Get(ctx, healthKey)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, want) {
		return errors.New("read back a different value")
	}
	return s.kv.Delete(ctx, healthKey)
}

// FormatBytes renders a byte count with a binary unit, e.g. "1.5 KB".
func FormatBytes(n int) string {
	if n <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	i := min(int(math.Floor(math.Log(float64(n))/math.Log(1024))), len(units)-1)
	v := float64(n) / math.Pow(1024, float64(i))
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + " " + units[i]
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// decodeObjects parses a JSON array and returns its object entries. skipped
// counts entries that are not objects.
func decodeObjects(b []byte) (objs []map[string]any, skipped int, err error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, 0, err
	}
	if raw == nil {
		return nil, 0, errors.New("not an array")
	}
	objs = make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		d := json.NewDecoder(bytes.NewReader(r))
		d.UseNumber()
		var m map[string]any
		if err := d.Decode(&m); err != nil || m == nil {
			skipped++
			continue
		}
		objs = append(objs, m)
	}
	return objs, skipped, nil
}

func newsFromObjects(objs []map[string]any, today string) []NewsItem {
	out := make([]NewsItem, 0, len(objs))
	var maxID int64
	for _, m := range objs {
		n := NormalizeNews(NewsItem{
			ID:       asInt64(m["id"]),
			Title:    asString(m["title"]),
			Summary:  asString(m["summary"]),
			Content:  asString(m["content"]),
			Date:     asString(m["date"]),
			Status:   asString(m["status"]),
			Category: asString(m["category"]),
			ReadTime: asString(m["readTime"]),
			Photo:    asStringPtr(m["photo"]),
		}, today)
		maxID = max(maxID, n.ID)
		out = append(out, n)
	}
	// Give records without a usable or unique ID a fresh one.
	seen := make(map[int64]struct{}, len(out))
	for i := range out {
		if _, dup := seen[out[i].ID]; out[i].ID <= 0 || dup {
			maxID++
			out[i].ID = maxID
		}
		seen[out[i].ID] = struct{}{}
	}
	return out
}

func projectsFromObjects(objs []map[string]any, today string) []ProjectItem {
	out := make([]ProjectItem, 0, len(objs))
	maxNum := 0
	for _, m := range objs {
		p := NormalizeProject(ProjectItem{
			ID:          strings.TrimSpace(asString(m["id"])),
			Name:        asString(m["name"]),
			Description: asString(m["description"]),
			Status:      asString(m["status"]),
			Type:        asString(m["type"]),
			StartDate:   asString(m["startDate"]),
			Progress:    asInt(m["progress"]),
			Photo:       asStringPtr(m["photo"]),
		}, today)
		if n, ok := ParseProjectNumber(p.ID); ok {
			maxNum = max(maxNum, n)
		}
		out = append(out, p)
	}
	seen := make(map[string]struct{}, len(out))
	for i := range out {
		if _, dup := seen[out[i].ID]; out[i].ID == "" || dup {
			maxNum++
			out[i].ID = FormatProjectID(maxNum)
		}
		seen[out[i].ID] = struct{}{}
	}
	return out
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func asStringPtr(v any) *string {
	if s, ok := v.(string); ok && s != "" {
		return &s
	}
	return nil
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asInt64(v any) int64 {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	f, ok := asFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(f)
}

func asInt(v any) int {
	f, ok := asFloat(v)
	if !ok || math.IsNaN(f) {
		return 0
	}
	return int(max(math.MinInt32, min(math.MaxInt32, f)))
}
