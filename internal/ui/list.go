package ui

import (
	"sort"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/veechar/internal/models"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

var (
	_ list.Item = audioItem{}
	_ list.Item = favoriteItem{}
)

// audioItem wraps [models.AudioItem] to implement [list.Item].
type audioItem struct {
	item       models.AudioItem
	downloaded bool
	favorite   bool
}

func (i audioItem) FilterValue() string { return i.item.Name }
func (i audioItem) Title() string {
	if i.item.IsFolder() {
		return styles.folder.Render("▸ " + i.item.Name)
	}
	return "♪ " + i.item.Name
}
func (i audioItem) Description() string {
	switch {
	case i.item.IsFolder() && i.favorite:
		return "folder • ♥ favorite"
	case i.item.IsFolder():
		return "folder"
	case i.downloaded:
		return "downloaded"
	default:
		return "stream"
	}
}

// favoriteItem wraps [models.FavoriteFolder] to implement [list.Item].
type favoriteItem struct {
	favorite *models.FavoriteFolder
}

func (i favoriteItem) FilterValue() string { return i.favorite.Name }
func (i favoriteItem) Title() string       { return "♥ " + i.favorite.Name }
func (i favoriteItem) Description() string { return i.favorite.Path }

// fuzzyFilter is a [list.FilterFunc] ranking targets by edit distance, case-insensitively.
func fuzzyFilter(term string, targets []string) []list.Rank {
	ranks := fuzzy.RankFindFold(term, targets)
	sort.Stable(ranks)

	result := make([]list.Rank, len(ranks))
	for i, r := range ranks {
		result[i] = list.Rank{Index: r.OriginalIndex}
	}
	return result
}

func newList(title string, items []list.Item, width, height int) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), width, height)
	l.Title = title
	l.Filter = fuzzyFilter
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()
	return l
}
