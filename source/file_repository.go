package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"
	"github.com/sardine-ai/go-widget-config/model"
	"github.com/sirupsen/logrus"
)

const watchDebounce = 500 * time.Millisecond

// FileRepository is a struct that implements the Repository interface for
// configuration blobs stored as one JSON file per channel in a directory.
type FileRepository struct {
	sync.RWMutex        // RWMutex to synchronize access to the channel files
	Name         string // Name of the configuration source
	Path         string // Directory holding the channel files
}

// NewFileRepository creates a FileRepository rooted at dir, creating the
// directory when it does not exist.
func NewFileRepository(name, dir string) (*FileRepository, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		logrus.WithError(err).Error("error getting absolute path")
		return nil, err
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("create configuration directory: %w", err)
	}
	return &FileRepository{Name: name, Path: absPath}, nil
}

// GetName returns the name of the configuration source.
func (f *FileRepository) GetName() string {
	return f.Name
}

func (f *FileRepository) channelPath(channel model.Channel) string {
	return filepath.Join(f.Path, objectName("", channel))
}

// Read returns the content of the channel's file.
func (f *FileRepository) Read(_ context.Context, channel model.Channel) (string, error) {
	f.RLock()
	defer f.RUnlock()

	data, err := os.ReadFile(f.channelPath(channel))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		logrus.Debug("error reading file")
		return "", err
	}
	return string(data), nil
}

// Write replaces the channel's file atomically, so readers never observe a
// partially written blob.
func (f *FileRepository) Write(_ context.Context, channel model.Channel, blob string) error {
	f.Lock()
	defer f.Unlock()
	return renameio.WriteFile(f.channelPath(channel), []byte(blob), 0o644)
}

// Delete removes the channel's file.
func (f *FileRepository) Delete(_ context.Context, channel model.Channel) error {
	f.Lock()
	defer f.Unlock()
	err := os.Remove(f.channelPath(channel))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Watch reports changes made to channel files by other processes. Bursts of
// events for the same channel are collapsed into one call. Watch returns
// once the watcher is running; it stops when ctx is cancelled.
func (f *FileRepository) Watch(ctx context.Context, onChange func(model.Channel)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(f.Path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", f.Path, err)
	}

	byFile := make(map[string]model.Channel, len(model.Channels))
	for _, channel := range model.Channels {
		byFile[objectName("", channel)] = channel
	}

	go func() {
		defer watcher.Close()
		timers := make(map[model.Channel]*time.Timer)
		defer func() {
			for _, timer := range timers {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				channel, known := byFile[filepath.Base(event.Name)]
				if !known {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				logrus.WithField("channel", channel).WithField("op", event.Op.String()).Debug("channel file changed")
				if timer, ok := timers[channel]; ok {
					timer.Stop()
				}
				timers[channel] = time.AfterFunc(watchDebounce, func() {
					if ctx.Err() == nil {
						onChange(channel)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logrus.WithError(err).Error("file watcher error")
			}
		}
	}()
	return nil
}
