package content

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatProjectID formats the n-th project ID, e.g. PRJ-007.
func FormatProjectID(n int) string {
	return fmt.Sprintf("%s%0*d", projectIDPrefix, projectIDMinimumWidth, n)
}

// ParseProjectNumber extracts n from "PRJ-n".
func ParseProjectNumber(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, projectIDPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ParseNewsID parses a news ID from a path segment.
func ParseNewsID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("news %q: %w", s, ErrNotFound)
	}
	return id, nil
}

// nextNewsIDLocked derives an ID from the clock in milliseconds, bumped past
// the largest ID ever seen so two adds in the same millisecond differ.
func (s *Store) nextNewsIDLocked() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastNewsID {
		id = s.lastNewsID + 1
	}
	s.lastNewsID = id
	return id
}

// nextProjectIDLocked returns the next PRJ-NNN. Numbers are never reused
// within a process, even after deletes.
func (s *Store) nextProjectIDLocked() string {
	s.lastProjectNum++
	return FormatProjectID(s.lastProjectNum)
}

// observeIDsLocked raises the ID high-water marks to cover the current
// collections.
func (s *Store) observeIDsLocked() {
	for i := range s.news {
		s.lastNewsID = max(s.lastNewsID, s.news[i].ID)
	}
	for i := range s.projects {
		if n, ok := ParseProjectNumber(s.projects[i].ID); ok {
			s.lastProjectNum = max(s.lastProjectNum, n)
		}
	}
}
