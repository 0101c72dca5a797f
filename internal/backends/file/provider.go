package file

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"winsync/internal/backends/items"
	"winsync/internal/backends/memory"
	"winsync/internal/types"
)

const watchDebounceInterval = 150 * time.Millisecond

// maxLineSize bounds a single JSONL record.
const maxLineSize = 4 << 20

// Provider serves a JSON Lines file, one item per line. It keeps the parsed file in memory
// and, while Watch runs, reloads it when it changes on disk and notifies listeners.
type Provider struct {
	*memory.Provider
	path     string
	debounce time.Duration
}

func NewProvider(path, idField string) (*Provider, error) {
	p := &Provider{
		Provider: memory.NewProvider(idField),
		path:     filepath.Clean(path),
		debounce: watchDebounceInterval,
	}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) Path() string { return p.path }

// Reload re-reads the file. Listeners are told to refresh everything.
func (p *Provider) Reload() error {
	rows, err := readLines(p.path)
	if err != nil {
		return err
	}
	p.Set(rows)
	return nil
}

func readLines(path string) ([]types.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []types.Item
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		item, err := items.Decode(b)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		rows = append(rows, item)
	}
	return rows, sc.Err()
}

// Watch reloads the file whenever writes to it settle, until ctx is done. The parent
// directory is watched so editors that replace the file are noticed too.
func (p *Provider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		return fmt.Errorf("watch %s: %w", p.path, err)
	}
	log.WithFields(log.Fields{"path": p.path, "debounce": p.debounce.String()}).Info("watching item file")

	var debounceTimer *time.Timer
	defer stopTimer(&debounceTimer)
	for {
		var debounceC <-chan time.Time
		if debounceTimer != nil {
			debounceC = debounceTimer.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != p.path || !shouldReload(event.Op) {
				continue
			}
			stopTimer(&debounceTimer)
			debounceTimer = time.NewTimer(p.debounce)
		case err, ok := <-watcher.Errors:
			if !ok || err == nil {
				continue
			}
			log.WithError(err).WithField("path", p.path).Error("watcher error")
		case <-debounceC:
			debounceTimer = nil
			if err := p.Reload(); err != nil {
				// a half-written or removed file; keep serving the last good copy
				log.WithError(err).WithField("path", p.path).Warn("reload failed")
				continue
			}
			log.WithFields(log.Fields{"path": p.path, "items": p.Len()}).Debug("item file reloaded")
		}
	}
}

func shouldReload(op fsnotify.Op) bool {
	return op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0
}

func stopTimer(t **time.Timer) {
	if *t == nil {
		return
	}
	if !(*t).Stop() {
		select {
		case <-(*t).C:
		default:
		}
	}
	*t = nil
}
