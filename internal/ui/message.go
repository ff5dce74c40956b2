package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/veechar/internal/models"
	"github.com/desertthunder/veechar/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgListingLoaded MsgKind = iota
	MsgFavoritesLoaded
	MsgProgressUpdate
	MsgActionDone
	MsgTick
)

type listingPayload struct {
	path       string
	items      []models.AudioItem
	downloaded map[string]bool
	favorites  map[string]bool
	err        error
}

type favoritesPayload struct {
	favorites []*models.FavoriteFolder
	err       error
}

type actionPayload struct {
	status string
	err    error
}

// listingLoadedMsg is the constructor for [MsgListingLoaded]
func listingLoadedMsg(p listingPayload) Msg {
	return Msg{kind: MsgListingLoaded, data: p}
}

// favoritesLoadedMsg is the constructor for [MsgFavoritesLoaded]
func favoritesLoadedMsg(favorites []*models.FavoriteFolder, err error) Msg {
	return Msg{kind: MsgFavoritesLoaded, data: favoritesPayload{favorites, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// actionDoneMsg is the constructor for [MsgActionDone]. status is shown on success.
func actionDoneMsg(status string, err error) Msg {
	return Msg{kind: MsgActionDone, data: actionPayload{status, err}}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg() Msg {
	return Msg{kind: MsgTick}
}
