// Package watcher imports images dropped into an inbox directory.
package watcher

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ImageHandler is called with the contents of a new or rewritten PNG.
type ImageHandler func(path string, data []byte)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// Inbox watches a directory and hands every complete PNG written to it to
// the handler. Files are read again on each write event, so a handler may
// see the same path more than once.
type Inbox struct {
	watcher *fsnotify.Watcher
	dir     string
	onImage ImageHandler

	mu   sync.Mutex
	last map[string]time.Time // path -> mod time already handled

	done chan struct{}
}

// New creates dir if needed and starts watching it.
func New(dir string, onImage ImageHandler) (*Inbox, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("create inbox dir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(absDir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", absDir, err)
	}

	in := &Inbox{
		watcher: w,
		dir:     absDir,
		onImage: onImage,
		last:    make(map[string]time.Time),
		done:    make(chan struct{}),
	}
	go in.watchLoop()
	return in, nil
}

func (in *Inbox) Dir() string { return in.dir }

// Close stops the watcher and waits for the loop to exit.
func (in *Inbox) Close() error {
	err := in.watcher.Close()
	<-in.done
	return err
}

func (in *Inbox) watchLoop() {
	defer close(in.done)
	for {
		select {
		case event, ok := <-in.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				in.handle(event.Name)
			}
		case err, ok := <-in.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[inbox] watcher error: %v", err)
		}
	}
}

func (in *Inbox) handle(path string) {
	if !strings.EqualFold(filepath.Ext(path), ".png") {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[inbox] read %s: %v", path, err)
		return
	}
	// Partially written; the next write event retries.
	if !bytes.HasPrefix(data, pngSignature) || !bytes.Contains(data, []byte("IEND")) {
		return
	}

	in.mu.Lock()
	seen, ok := in.last[path]
	if ok && seen.Equal(info.ModTime()) {
		in.mu.Unlock()
		return
	}
	in.last[path] = info.ModTime()
	in.mu.Unlock()

	if in.onImage != nil {
		in.onImage(path, data)
	}
}
