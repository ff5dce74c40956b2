package listing

import (
	"sort"
	"strings"

	"github.com/desertthunder/veechar/internal/models"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Filter returns the items whose names fuzzily match query, best match first.
//
// Matching is case-insensitive. Ties keep listing order. An empty query returns items unchanged.
func Filter(items []models.AudioItem, query string) []models.AudioItem {
	query = strings.TrimSpace(query)
	if query == "" {
		return items
	}

	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Name
	}

	ranks := fuzzy.RankFindFold(query, names)
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].OriginalIndex < ranks[j].OriginalIndex
	})

	out := make([]models.AudioItem, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, items[r.OriginalIndex])
	}
	return out
}
