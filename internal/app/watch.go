package app

import (
	"github.com/dshills/runpane/internal/config/loader"
	"github.com/dshills/runpane/internal/config/watcher"
)

// startWatcher reloads the filter files whenever one of them, or a filter
// file in a watched directory, changes.
func (app *Application) startWatcher() error {
	w, err := watcher.New(
		watcher.WithLogger(app.log.WithComponent("watcher")),
		watcher.WithMatch(func(path string) bool {
			return loader.FormatOf(path) != loader.FormatUnknown
		}),
	)
	if err != nil {
		return err
	}

	for _, path := range app.config.Filters.Paths {
		if err := w.Watch(path); err != nil {
			app.log.Warn("not watching %s: %v", path, err)
		}
	}
	w.OnChange(func(ev watcher.Event) {
		app.log.Debug("%s %s", ev.Op, ev.Path)
		if err := app.ReloadFilters(); err != nil {
			app.log.Warn("reloading filters: %v", err)
		}
	})
	w.Start()

	app.mu.Lock()
	app.watcher = w
	app.mu.Unlock()
	return nil
}
