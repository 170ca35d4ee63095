package catalog

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher loads a manifest and reloads it whenever the source changes.
type Watcher struct {
	source   string
	interval time.Duration
	debounce time.Duration

	mu   sync.Mutex
	subs []func(WorkingSet, error)
}

// NewWatcher returns a Watcher for source. interval is the polling period used
// for URL sources and when fsnotify is unavailable.
func NewWatcher(source string, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watcher{
		source:   source,
		interval: interval,
		debounce: 250 * time.Millisecond,
	}
}

// Subscribe registers fn to receive every load result. A failed load is
// delivered as an empty WorkingSet together with its error.
func (w *Watcher) Subscribe(fn func(WorkingSet, error)) {
	w.mu.Lock()
	w.subs = append(w.subs, fn)
	w.mu.Unlock()
}

// Reload loads the source once and publishes the result.
func (w *Watcher) Reload(ctx context.Context) {
	ws, err := Load(ctx, w.source)
	if err != nil {
		log.Warn().Err(err).Str("source", w.source).Msg("[catalog] load failed")
		ws = WorkingSet{}
	} else {
		log.Info().Int("videos", len(ws)).Str("source", w.source).Msg("[catalog] manifest loaded")
	}
	w.mu.Lock()
	subs := slices.Clone(w.subs)
	w.mu.Unlock()
	for _, fn := range subs {
		fn(ws, err)
	}
}

// Run performs the initial load and then watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if IsURL(w.source) {
		w.Reload(ctx)
		return w.pollURL(ctx)
	}

	target, err := filepath.Abs(w.source)
	if err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("[catalog] fsnotify unavailable; polling")
		w.Reload(ctx)
		return w.pollFile(ctx)
	}
	defer fw.Close()
	// Watch the directory so replace-by-rename still reaches us.
	if err := fw.Add(filepath.Dir(target)); err != nil {
		log.Warn().Err(err).Msg("[catalog] watch directory failed; polling")
		w.Reload(ctx)
		return w.pollFile(ctx)
	}
	w.Reload(ctx)

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
				fire = time.After(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Debug().Err(err).Msg("[catalog] watcher error")
		case <-fire:
			fire = nil
			log.Info().Str("source", w.source).Msg("[catalog] manifest changed, reloading")
			w.Reload(ctx)
		}
	}
}

type fileStamp struct {
	exists  bool
	size    int64
	modTime time.Time
}

func stat(path string) fileStamp {
	fi, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{exists: true, size: fi.Size(), modTime: fi.ModTime()}
}

func (s fileStamp) same(o fileStamp) bool {
	return s.exists == o.exists && s.size == o.size && s.modTime.Equal(o.modTime)
}

func (w *Watcher) pollFile(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	last := stat(w.source)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			cur := stat(w.source)
			if !cur.same(last) {
				last = cur
				w.Reload(ctx)
			}
		}
	}
}

func (w *Watcher) pollURL(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			w.Reload(ctx)
		}
	}
}
