// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI has three views:
//  1. [BrowseView] : Walk the archive folder tree, play or download tracks
//  2. [DownloadsView] : Watch live download rows, pause, resume or cancel them
//  3. [FavoritesView] : Jump to starred folders
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Download rows are fed by the orchestrator's update channel; a periodic tick refreshes the now-playing bar from the session.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, tab, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
