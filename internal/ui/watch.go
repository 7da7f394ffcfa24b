package ui

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
)

// debounce collapses the burst of events a single save produces.
const debounce = 150 * time.Millisecond

// watch sends documentChangedMsg to p whenever path changes on disk. The
// directory is watched because writers replace the file by rename.
func watch(ctx context.Context, path string, p *tea.Program, log *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() { p.Send(documentChangedMsg{}) })
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("document watch error", slog.String("error", err.Error()))
			}
		}
	}()
	return nil
}

// Run shows the trackers of the document at path until the user quits.
// Every widget is detached before Run returns.
func Run(ctx context.Context, r Renderer, path string, interval time.Duration, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewModel(ctx, r, path, interval, log)
	p := tea.NewProgram(m, tea.WithContext(ctx))
	if err := watch(ctx, path, p, log); err != nil {
		log.Warn("document changes will not be picked up", slog.String("error", err.Error()))
	}
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.Detach()
	}
	return err
}
