package content

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed seed.json
var seedJSON []byte

type seedData struct {
	News     []NewsItem    `json:"news"`
	Projects []ProjectItem `json:"projects"`
}

var seed = mustParseSeed()

func mustParseSeed() seedData {
	var s seedData
	if err := json.Unmarshal(seedJSON, &s); err != nil {
		panic(fmt.Sprintf("invalid embedded seed: %v", err))
	}
	return s
}

// DefaultNews returns a fresh copy of the seed news collection.
func DefaultNews() []NewsItem {
	out := make([]NewsItem, len(seed.News))
	for i, n := range seed.News {
		out[i] = n
		if n.Photo != nil {
			out[i].Photo = ptr(*n.Photo)
		}
	}
	return out
}

// DefaultProjects returns a fresh copy of the seed project collection.
func DefaultProjects() []ProjectItem {
	out := make([]ProjectItem, len(seed.Projects))
	for i, p := range seed.Projects {
		out[i] = p
		if p.Photo != nil {
			out[i].Photo = ptr(*p.Photo)
		}
	}
	return out
}
