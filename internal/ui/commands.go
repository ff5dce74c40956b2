package ui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/veechar/internal/models"
)

const (
	requestTimeout = 30 * time.Second
	tickInterval   = 500 * time.Millisecond
)

// loadListing fetches path through the browser and marks downloaded tracks and starred folders.
func (m *Model) loadListing(path string, refresh bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, requestTimeout)
		defer cancel()

		var (
			items []models.AudioItem
			err   error
		)
		if refresh {
			items, err = m.browser.Refresh(ctx, path)
		} else {
			items, err = m.browser.Open(ctx, path)
		}
		if err != nil {
			return listingLoadedMsg(listingPayload{path: path, err: err})
		}
		return listingLoadedMsg(listingPayload{
			path:       path,
			items:      items,
			downloaded: m.downloadedURLs(),
			favorites:  m.favoritePaths(),
		})
	}
}

func (m *Model) downloadedURLs() map[string]bool {
	out := make(map[string]bool)
	if m.tracks == nil {
		return out
	}
	records, err := m.tracks.ListDownloaded()
	if err != nil {
		m.logger.Warn("failed to list downloads", "error", err)
		return out
	}
	for _, rec := range records {
		out[rec.URL] = true
	}
	return out
}

func (m *Model) favoritePaths() map[string]bool {
	out := make(map[string]bool)
	if m.favorites == nil {
		return out
	}
	favorites, err := m.favorites.ListFavorites()
	if err != nil {
		m.logger.Warn("failed to list favorites", "error", err)
		return out
	}
	for _, f := range favorites {
		out[f.Path] = true
	}
	return out
}

func (m *Model) loadFavorites() tea.Cmd {
	return func() tea.Msg {
		if m.favorites == nil {
			return favoritesLoadedMsg(nil, nil)
		}
		favorites, err := m.favorites.ListFavorites()
		return favoritesLoadedMsg(favorites, err)
	}
}

func (m *Model) toggleFavorite(path, name string) tea.Cmd {
	return func() tea.Msg {
		if m.favorites == nil {
			return actionDoneMsg("", fmt.Errorf("favorites are unavailable"))
		}
		starred, err := m.favorites.ToggleFavorite(path, name)
		if err != nil {
			return actionDoneMsg("", err)
		}
		if starred {
			return actionDoneMsg(fmt.Sprintf("♥ %s added to favorites", name), nil)
		}
		return actionDoneMsg(fmt.Sprintf("%s removed from favorites", name), nil)
	}
}

// waitForUpdate blocks on the orchestrator's update channel.
func (m *Model) waitForUpdate() tea.Cmd {
	if m.downloads == nil {
		return nil
	}
	updates := m.downloads.Updates()
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return nil
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) startDownload(item models.AudioItem) tea.Cmd {
	return func() tea.Msg {
		if m.downloads == nil {
			return actionDoneMsg("", fmt.Errorf("downloads are unavailable"))
		}
		if err := m.downloads.Start(item.URL, item.Name); err != nil {
			return actionDoneMsg("", err)
		}
		return actionDoneMsg(fmt.Sprintf("Downloading %s", item.Name), nil)
	}
}

func (m *Model) playItem(item models.AudioItem) tea.Cmd {
	return func() tea.Msg {
		if m.session == nil {
			return actionDoneMsg("", fmt.Errorf("playback is unavailable"))
		}
		ctx, cancel := context.WithTimeout(m.ctx, requestTimeout)
		defer cancel()

		if err := m.session.Load(ctx, item); err != nil {
			return actionDoneMsg("", err)
		}
		return actionDoneMsg(fmt.Sprintf("Playing %s", item.Name), nil)
	}
}

// playerAction runs a session control and reports only failures.
func (m *Model) playerAction(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if m.session == nil {
			return actionDoneMsg("", fmt.Errorf("playback is unavailable"))
		}
		return actionDoneMsg("", fn())
	}
}

// taskAction runs a download control against url.
func (m *Model) taskAction(fn func(string) error, url, status string) tea.Cmd {
	return func() tea.Msg {
		if err := fn(url); err != nil {
			return actionDoneMsg("", err)
		}
		return actionDoneMsg(status, nil)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg {
		return tickMsg()
	})
}
