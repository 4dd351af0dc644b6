package policy

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Manager keeps the last valid policy document from a file and reloads it on
// change or periodically. A failed reload keeps the previous document.
type Manager struct {
	filePath string
	dirPath  string
	baseName string

	log      *slog.Logger
	debounce time.Duration
	interval time.Duration

	current  atomic.Pointer[Document]
	onReload func(*Document)
}

type Options struct {
	Debounce time.Duration
	Interval time.Duration
	Logger   *slog.Logger
	// OnReload is called after every successful load.
	OnReload func(*Document)
}

func NewManager(filePath string, opts Options) *Manager {
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Manager{
		filePath: filePath,
		dirPath:  filepath.Dir(filePath),
		baseName: filepath.Base(filePath),
		log:      opts.Logger.With("policy_file", filePath),
		debounce: opts.Debounce,
		interval: opts.Interval,
		onReload: opts.OnReload,
	}
}

func (m *Manager) Current() (*Document, bool) {
	d := m.current.Load()
	return d, d != nil
}

// Load reads the file once without starting the watcher.
func (m *Manager) Load() error {
	return m.reload()
}

func (m *Manager) Start(ctx context.Context) error {
	if err := m.reload(); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// watch the directory, editors and k8s configmaps replace the file
	if err := w.Add(m.dirPath); err != nil {
		_ = w.Close()
		return err
	}

	go func() {
		defer w.Close()

		var timer *time.Timer
		trigger := func() {
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(m.debounce, func() {
				if err := m.reload(); err != nil {
					m.log.Error("policy reload failed, keeping last known good", "err", err)
				}
			})
		}

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case <-ticker.C:
				if err := m.reload(); err != nil {
					m.log.Error("policy periodic reload failed, keeping last known good", "err", err)
				}
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				name := filepath.Base(ev.Name)
				if name == m.baseName || name == "..data" {
					trigger()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				m.log.Error("policy watcher error", "err", err)
			}
		}
	}()

	return nil
}

func (m *Manager) reload() error {
	doc, err := LoadFromFile(m.filePath)
	if err != nil {
		return err
	}
	m.current.Store(doc)
	m.log.Info("policy loaded", "name", doc.Metadata.Name, "roles", len(doc.Roles))
	if m.onReload != nil {
		m.onReload(doc)
	}
	return nil
}
