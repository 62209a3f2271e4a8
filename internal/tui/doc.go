// Package tui is a terminal front end for the demo stores.
//
// The model renders the counter, theme and cart stores and redraws
// whenever one of them changes, including changes made by other clients of
// the same App such as the HTTP server.
//
//	m := tui.New(tui.Options{App: app})
//	defer m.Close()
//	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
package tui
