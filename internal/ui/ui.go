package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/veechar/internal/models"
	"github.com/desertthunder/veechar/internal/playback"
	"github.com/desertthunder/veechar/internal/shared"
	"github.com/desertthunder/veechar/internal/tasks"
	"github.com/dustin/go-humanize"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	BrowseView ViewState = iota
	DownloadsView
	FavoritesView
)

// Lister serves folder listings. Implemented by [listing.Browser].
type Lister interface {
	Open(ctx context.Context, path string) ([]models.AudioItem, error)
	Refresh(ctx context.Context, path string) ([]models.AudioItem, error)
}

// Downloader controls background downloads. Implemented by [tasks.Orchestrator].
type Downloader interface {
	Start(url, name string) error
	Cancel(url string) error
	Pause(url string) error
	Resume(url string) error
	Tasks() []tasks.Task
	Updates() <-chan tasks.ProgressUpdate
}

// Player controls the listening session. Implemented by [playback.Session].
type Player interface {
	Load(ctx context.Context, item models.AudioItem) error
	TogglePlayPause() error
	SkipForward() error
	SkipBackward() error
	State() playback.State
}

// Options wires the model to the application services. Nil services disable their views' actions.
type Options struct {
	Browser   Lister
	Downloads Downloader
	Session   Player
	Favorites models.FavoriteStore
	Tracks    models.TrackStore
	Roots     []models.AudioItem
	Logger    *log.Logger
}

// crumb is one level of the folder stack.
type crumb struct {
	path string
	name string
}

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	browser   Lister
	downloads Downloader
	session   Player
	favorites models.FavoriteStore
	tracks    models.TrackStore
	logger    *log.Logger

	width      int
	height     int
	roots      []models.AudioItem
	crumbs     []crumb
	folderList list.Model
	favList    list.Model
	loading    bool
	err        error
	status     string

	taskRows   map[string]tasks.Task
	taskCursor int
	now        playback.State

	spinner spinner.Model
	bar     progress.Model
	help    help.Model
	keys    keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	m := &Model{
		ctx:       ctx,
		view:      BrowseView,
		browser:   opts.Browser,
		downloads: opts.Downloads,
		session:   opts.Session,
		favorites: opts.Favorites,
		tracks:    opts.Tracks,
		logger:    opts.Logger,
		roots:     opts.Roots,
		taskRows:  make(map[string]tasks.Task),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		help:      help.New(),
		keys:      newKeyMap(),
	}
	m.folderList = newList("Gurmat Veechar", m.rootItems(), 0, 0)
	m.favList = newList("Favorites", nil, 0, 0)

	if m.downloads != nil {
		for _, task := range m.downloads.Tasks() {
			m.taskRows[task.URL] = task
		}
	}
	return m
}

// Init starts listening for download updates and the playback tick.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForUpdate(), m.loadFavorites(), tickCmd())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.folderList.SetSize(msg.Width-4, msg.Height-8)
		m.favList.SetSize(msg.Width-4, msg.Height-8)
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgListingLoaded:
		p := msg.data.(listingPayload)
		if p.path != m.currentPath() {
			return m, nil
		}
		m.loading = false
		if p.err != nil {
			m.err = p.err
			return m, nil
		}
		m.err = nil
		items := make([]list.Item, len(p.items))
		for i, item := range p.items {
			items[i] = audioItem{item: item, downloaded: p.downloaded[item.URL], favorite: p.favorites[item.URL]}
		}
		return m, m.folderList.SetItems(items)

	case MsgFavoritesLoaded:
		p := msg.data.(favoritesPayload)
		if p.err != nil {
			m.logger.Warn("failed to load favorites", "error", p.err)
			m.status = styles.err.Render(fmt.Sprintf("Error: %v", p.err))
			return m, nil
		}
		items := make([]list.Item, len(p.favorites))
		for i, f := range p.favorites {
			items[i] = favoriteItem{favorite: f}
		}
		return m, m.favList.SetItems(items)

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.applyUpdate(update)
		return m, m.waitForUpdate()

	case MsgActionDone:
		p := msg.data.(actionPayload)
		if p.err != nil {
			m.logger.Warn("action failed", "error", p.err)
			m.status = styles.err.Render(fmt.Sprintf("Error: %v", p.err))
		} else if p.status != "" {
			m.status = p.status
		}
		return m, m.loadFavorites()

	case MsgTick:
		if m.session != nil {
			m.now = m.session.State()
		}
		return m, tickCmd()
	}
	return m, nil
}

func (m *Model) applyUpdate(update tasks.ProgressUpdate) {
	task := update.Task
	if update.Removed {
		delete(m.taskRows, task.URL)
	} else {
		m.taskRows[task.URL] = task
	}
	if m.taskCursor >= len(m.taskRows) {
		m.taskCursor = max(len(m.taskRows)-1, 0)
	}

	if task.State == tasks.StateCompleted && !update.Removed {
		m.status = styles.ok.Render(fmt.Sprintf("✓ Downloaded %s", task.Name))
		m.markDownloaded(task.URL)
	}
}

func (m *Model) markDownloaded(url string) {
	for i, li := range m.folderList.Items() {
		if item, ok := li.(audioItem); ok && item.item.URL == url {
			item.downloaded = true
			m.folderList.SetItem(i, item)
		}
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case BrowseView:
		body = m.renderBrowse()
	case DownloadsView:
		body = m.renderDownloads()
	case FavoritesView:
		body = m.renderFavorites()
	}

	parts := []string{body}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	if bar := m.renderNowPlaying(); bar != "" {
		parts = append(parts, bar)
	}
	parts = append(parts, m.renderHelp())
	return strings.Join(parts, "\n\n")
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filtering() {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.next):
		m.view = (m.view + 1) % 3
		return m, nil
	case key.Matches(msg, m.keys.play):
		return m, m.playerAction(func() error { return m.session.TogglePlayPause() })
	case key.Matches(msg, m.keys.rewind):
		return m, m.playerAction(func() error { return m.session.SkipBackward() })
	case key.Matches(msg, m.keys.forward):
		return m, m.playerAction(func() error { return m.session.SkipForward() })
	}

	switch m.view {
	case BrowseView:
		return m.handleBrowseKeys(msg)
	case DownloadsView:
		return m.handleDownloadsKeys(msg)
	case FavoritesView:
		return m.handleFavoritesKeys(msg)
	}
	return m, nil
}

func (m *Model) handleBrowseKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	selected, hasSelection := m.folderList.SelectedItem().(audioItem)

	switch {
	case key.Matches(msg, m.keys.enter):
		if !hasSelection {
			return m, nil
		}
		if selected.item.IsFolder() {
			return m, m.open(selected.item.URL, selected.item.Name)
		}
		return m, m.playItem(selected.item)

	case key.Matches(msg, m.keys.back):
		if len(m.crumbs) == 0 {
			return m, nil
		}
		m.crumbs = m.crumbs[:len(m.crumbs)-1]
		m.err = nil
		if len(m.crumbs) == 0 {
			m.loading = false
			m.folderList.Title = "Gurmat Veechar"
			return m, m.folderList.SetItems(m.rootItems())
		}
		return m, m.reload(false)

	case key.Matches(msg, m.keys.refresh):
		if len(m.crumbs) == 0 {
			return m, nil
		}
		return m, m.reload(true)

	case key.Matches(msg, m.keys.download):
		if hasSelection && !selected.item.IsFolder() {
			return m, m.startDownload(selected.item)
		}
		return m, nil

	case key.Matches(msg, m.keys.favorite):
		if hasSelection && selected.item.IsFolder() {
			selected.favorite = !selected.favorite
			m.folderList.SetItem(m.folderList.Index(), selected)
			return m, m.toggleFavorite(selected.item.URL, selected.item.Name)
		}
		if c, ok := m.currentCrumb(); ok {
			return m, m.toggleFavorite(c.path, c.name)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.folderList, cmd = m.folderList.Update(msg)
	return m, cmd
}

func (m *Model) handleDownloadsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.sortedTasks()

	switch {
	case key.Matches(msg, m.keys.up):
		if m.taskCursor > 0 {
			m.taskCursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.down):
		if m.taskCursor < len(rows)-1 {
			m.taskCursor++
		}
		return m, nil
	}

	if len(rows) == 0 || m.downloads == nil {
		return m, nil
	}
	task := rows[min(m.taskCursor, len(rows)-1)]

	switch {
	case key.Matches(msg, m.keys.cancel):
		return m, m.taskAction(m.downloads.Cancel, task.URL, fmt.Sprintf("Cancelled %s", task.Name))
	case key.Matches(msg, m.keys.pause):
		switch task.State {
		case tasks.StatePaused:
			return m, m.taskAction(m.downloads.Resume, task.URL, fmt.Sprintf("Resumed %s", task.Name))
		case tasks.StateQueued, tasks.StateDownloading:
			return m, m.taskAction(m.downloads.Pause, task.URL, fmt.Sprintf("Paused %s", task.Name))
		}
	}
	return m, nil
}

func (m *Model) handleFavoritesKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	selected, ok := m.favList.SelectedItem().(favoriteItem)

	switch {
	case key.Matches(msg, m.keys.enter):
		if !ok {
			return m, nil
		}
		m.view = BrowseView
		m.crumbs = nil
		return m, m.open(selected.favorite.Path, selected.favorite.Name)
	case key.Matches(msg, m.keys.favorite):
		if !ok {
			return m, nil
		}
		return m, m.toggleFavorite(selected.favorite.Path, selected.favorite.Name)
	}

	var cmd tea.Cmd
	m.favList, cmd = m.favList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case BrowseView:
		m.folderList, cmd = m.folderList.Update(msg)
	case FavoritesView:
		m.favList, cmd = m.favList.Update(msg)
	}
	return m, cmd
}

func (m *Model) filtering() bool {
	switch m.view {
	case BrowseView:
		return m.folderList.FilterState() == list.Filtering
	case FavoritesView:
		return m.favList.FilterState() == list.Filtering
	}
	return false
}

// open pushes a folder onto the stack and loads it.
func (m *Model) open(path, name string) tea.Cmd {
	m.crumbs = append(m.crumbs, crumb{path: path, name: name})
	m.folderList.ResetFilter()
	m.folderList.ResetSelected()
	return m.reload(false)
}

func (m *Model) reload(refresh bool) tea.Cmd {
	c, _ := m.currentCrumb()
	m.folderList.Title = c.name
	m.loading = true
	m.err = nil
	if m.browser == nil {
		m.loading = false
		m.err = fmt.Errorf("%w: no archive browser", shared.ErrServiceUnavailable)
		return nil
	}
	return tea.Batch(m.spinner.Tick, m.loadListing(c.path, refresh))
}

func (m *Model) currentCrumb() (crumb, bool) {
	if len(m.crumbs) == 0 {
		return crumb{}, false
	}
	return m.crumbs[len(m.crumbs)-1], true
}

func (m *Model) currentPath() string {
	c, _ := m.currentCrumb()
	return c.path
}

func (m *Model) rootItems() []list.Item {
	items := make([]list.Item, len(m.roots))
	for i, root := range m.roots {
		items[i] = audioItem{item: root}
	}
	return items
}

// sortedTasks returns the download rows oldest first.
func (m *Model) sortedTasks() []tasks.Task {
	rows := make([]tasks.Task, 0, len(m.taskRows))
	for _, task := range m.taskRows {
		rows = append(rows, task)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].StartedAt.Equal(rows[j].StartedAt) {
			return rows[i].URL < rows[j].URL
		}
		return rows[i].StartedAt.Before(rows[j].StartedAt)
	})
	return rows
}

func (m *Model) renderBrowse() string {
	if m.loading {
		c, _ := m.currentCrumb()
		return fmt.Sprintf("%s Loading %s...", m.spinner.View(), c.name)
	}
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress r to retry, esc to go back", m.err))
	}
	return m.folderList.View()
}

func (m *Model) renderDownloads() string {
	title := styles.title.Render("Downloads")
	rows := m.sortedTasks()
	if len(rows) == 0 {
		return fmt.Sprintf("%s\n%s", title, styles.help.Render("No active downloads"))
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	for i, task := range rows {
		cursor := "  "
		if i == m.taskCursor {
			cursor = "> "
		}
		b.WriteString(fmt.Sprintf("%s%s\n  %s %s\n", cursor, task.Name, m.bar.ViewAs(task.Progress), taskDetail(task)))
	}
	return b.String()
}

func taskDetail(task tasks.Task) string {
	size := humanize.IBytes(uint64(max(task.WrittenBytes, 0)))
	if task.ExpectedBytes > 0 {
		size = fmt.Sprintf("%s / %s", size, humanize.IBytes(uint64(task.ExpectedBytes)))
	}

	switch task.State {
	case tasks.StateCompleted:
		return styles.ok.Render("completed") + " " + size
	case tasks.StateFailed:
		return styles.err.Render("failed: " + task.Err)
	case tasks.StatePaused:
		return styles.warn.Render("paused") + " " + size
	default:
		return task.State.String() + " " + size
	}
}

func (m *Model) renderFavorites() string {
	if len(m.favList.Items()) == 0 {
		return fmt.Sprintf("%s\n%s", styles.title.Render("Favorites"), styles.help.Render("Press f on a folder to add it"))
	}
	return m.favList.View()
}

func (m *Model) renderNowPlaying() string {
	if !m.now.Loaded {
		return ""
	}
	icon := "⏸"
	if m.now.Playing {
		icon = "▶"
	}
	source := "streaming"
	if m.now.Source == playback.SourceLocal {
		source = "downloaded"
	}
	return styles.bar.Render(fmt.Sprintf("%s %s  %s / %s  (%s)", icon, m.now.Name,
		shared.FormatDuration(m.now.Position), shared.FormatDuration(m.now.Duration), source))
}

func (m *Model) renderHelp() string {
	var keys []key.Binding
	switch m.view {
	case BrowseView:
		keys = []key.Binding{m.keys.enter, m.keys.back, m.keys.download, m.keys.favorite, m.keys.refresh}
	case DownloadsView:
		keys = []key.Binding{m.keys.up, m.keys.down, m.keys.pause, m.keys.cancel}
	case FavoritesView:
		keys = []key.Binding{m.keys.enter, m.keys.favorite}
	}
	if m.now.Loaded {
		keys = append(keys, m.keys.play, m.keys.rewind, m.keys.forward)
	}
	keys = append(keys, m.keys.next, m.keys.quit)
	return m.help.ShortHelpView(keys)
}
