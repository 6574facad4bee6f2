package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sardine-ai/go-widget-config/metrics"
	"github.com/sardine-ai/go-widget-config/model"
	"github.com/sardine-ai/go-widget-config/source"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Controller is the configuration store behind the bridge. It writes through
// to a Repository and keeps a parsed view of every channel, refreshed in the
// background so that changes made by other writers become visible.
type Controller struct {
	sync.RWMutex
	Repository      source.Repository
	RefreshInterval time.Duration
	cancel          context.CancelFunc
	ctx             context.Context
	done            chan struct{}  // closed when the refresh goroutine returns
	pending         sync.WaitGroup // reads still running
	closeOnce       sync.Once
	closed          bool
	writes          sync.Mutex // keeps a repository write and its view update together

	blobs       map[model.Channel]string // last blob seen per channel
	generations map[model.Channel]uint64 // bumped by every write of a channel
	app         *model.AppWidgetConfiguration
	scenes      []model.SceneConfiguration
	controls    []model.ControlConfiguration
	states      []model.StateConfiguration
	listeners   []func(model.Channel)
	lastErr     error
	lastRefresh time.Time
}

// NewController creates a Controller for repository, loads every channel
// once and then reloads them every refreshInterval until Close is called. A
// zero refreshInterval disables background refreshes.
func NewController(ctx context.Context, repository source.Repository, refreshInterval time.Duration) *Controller {
	ctx, cancel := context.WithCancel(ctx)
	c := &Controller{
		Repository:      repository,
		RefreshInterval: refreshInterval,
		cancel:          cancel,
		ctx:             ctx,
		done:            make(chan struct{}),
		blobs:           make(map[model.Channel]string),
		generations:     make(map[model.Channel]uint64),
	}

	// Load the configuration for the first time so the controller is
	// usable as soon as it is returned.
	if err := c.Refresh(ctx); err != nil {
		logrus.WithError(err).Error("error refreshing repository")
	}

	if refreshInterval > 0 {
		go c.refreshLoop(ctx)
	} else {
		close(c.done)
	}
	return c
}

func (c *Controller) refreshLoop(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				logrus.WithError(err).Error("error refreshing repository")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Watch subscribes to change notifications of the repository, when it
// supports them, and reloads a channel as soon as it changes. It reports
// whether the repository can be watched.
func (c *Controller) Watch() (bool, error) {
	watcher, ok := c.Repository.(source.Watcher)
	if !ok {
		return false, nil
	}
	err := watcher.Watch(c.ctx, func(channel model.Channel) {
		if err := c.reload(c.ctx, channel); err != nil {
			logrus.WithError(err).WithField("channel", channel).Error("error reloading channel")
		}
	})
	return err == nil, err
}

// Close stops the background refresh and waits for outstanding reads.
// Reads requested afterwards are answered on the caller's goroutine.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.Lock()
		c.closed = true
		c.Unlock()
		c.cancel()
		<-c.done
		c.pending.Wait()
	})
}

// Refresh reloads all channels from the repository concurrently. Channels
// that could be read are applied even when others fail; the first error is
// returned and kept for health reporting.
func (c *Controller) Refresh(ctx context.Context) error {
	err := c.refresh(ctx)
	metrics.RecordRefresh(err)

	c.Lock()
	c.lastErr = err
	c.lastRefresh = time.Now()
	c.Unlock()
	return err
}

func (c *Controller) refresh(ctx context.Context) error {
	if refresher, ok := c.Repository.(source.Refresher); ok {
		if err := refresher.Refresh(ctx); err != nil {
			return fmt.Errorf("refresh %s: %w", c.Repository.GetName(), err)
		}
	}

	blobs := make([]string, len(model.Channels))
	loaded := make([]bool, len(model.Channels))
	generations := make([]uint64, len(model.Channels))
	for i, channel := range model.Channels {
		generations[i] = c.generation(channel)
	}
	g, gctx := errgroup.WithContext(ctx)
	for i, channel := range model.Channels {
		g.Go(func() error {
			blob, err := c.read(gctx, channel)
			if err != nil {
				return fmt.Errorf("read %s: %w", channel, err)
			}
			blobs[i], loaded[i] = blob, true
			return nil
		})
	}
	err := g.Wait()

	for i, channel := range model.Channels {
		if loaded[i] {
			c.load(channel, blobs[i], generations[i])
		}
	}
	logrus.WithField("repository", c.Repository.GetName()).Debug("refreshed")
	return err
}

// read returns the blob of channel, the empty string when it is absent.
func (c *Controller) read(ctx context.Context, channel model.Channel) (string, error) {
	blob, err := c.Repository.Read(ctx, channel)
	if errors.Is(err, source.ErrNotFound) {
		return "", nil
	}
	return blob, err
}

func (c *Controller) reload(ctx context.Context, channel model.Channel) error {
	generation := c.generation(channel)
	blob, err := c.read(ctx, channel)
	if err != nil {
		return err
	}
	c.load(channel, blob, generation)
	return nil
}

func (c *Controller) generation(channel model.Channel) uint64 {
	c.RLock()
	defer c.RUnlock()
	return c.generations[channel]
}

// load applies a blob read from the repository. generation is the write
// generation of channel captured before the read; the blob is dropped when a
// write happened since, as it may predate that write.
func (c *Controller) load(channel model.Channel, blob string, generation uint64) {
	c.apply(channel, blob, func() bool {
		return c.generations[channel] == generation
	})
}

// stored applies a blob this controller just wrote. Loads that started
// earlier are invalidated.
func (c *Controller) stored(channel model.Channel, blob string) {
	c.apply(channel, blob, func() bool {
		c.generations[channel]++
		return true
	})
}

// apply updates the parsed view of channel and notifies subscribers when the
// blob differs from the one seen last. current runs under the write lock and
// reports whether blob may still be installed.
func (c *Controller) apply(channel model.Channel, blob string, current func() bool) {
	c.RLock()
	previous, seen := c.blobs[channel]
	c.RUnlock()

	var view channelView
	decoded := false
	if !seen || previous != blob {
		// Decode outside the lock, swap under it.
		view, decoded = decodeView(channel, blob), true
	}

	c.Lock()
	if !current() {
		c.Unlock()
		return
	}
	previous, seen = c.blobs[channel]
	if seen && previous == blob {
		c.Unlock()
		return
	}
	if !decoded {
		view = decodeView(channel, blob)
	}
	c.blobs[channel] = blob
	switch channel {
	case model.AppInfo:
		c.app = view.app
	case model.SceneList:
		c.scenes = view.scenes
	case model.ControlDeviceList:
		c.controls = view.controls
	case model.StateDeviceList:
		c.states = view.states
	}
	listeners := append([]func(model.Channel){}, c.listeners...)
	c.Unlock()

	if !seen && blob == "" {
		return
	}
	for _, listener := range listeners {
		listener(channel)
	}
}

type channelView struct {
	app      *model.AppWidgetConfiguration
	scenes   []model.SceneConfiguration
	controls []model.ControlConfiguration
	states   []model.StateConfiguration
}

// decodeView parses blob into the typed model of channel. Blobs that do not
// match the model leave the view empty.
func decodeView(channel model.Channel, blob string) channelView {
	var view channelView
	if blob == "" {
		return view
	}
	var target any
	switch channel {
	case model.AppInfo:
		view.app = &model.AppWidgetConfiguration{}
		target = view.app
	case model.SceneList:
		target = &view.scenes
	case model.ControlDeviceList:
		target = &view.controls
	case model.StateDeviceList:
		target = &view.states
	default:
		return view
	}
	if err := json.Unmarshal([]byte(blob), target); err != nil {
		logrus.WithError(err).WithField("channel", channel).Warn("configuration does not match the widget model")
		return channelView{}
	}
	return view
}

// SetConfiguration writes blob to the repository. Failures are logged; the
// parsed view only changes once the write succeeded.
func (c *Controller) SetConfiguration(ctx context.Context, channel model.Channel, blob string) {
	if err := c.WriteBlob(ctx, channel, blob); err != nil {
		logrus.WithError(err).WithField("channel", channel).Error("error writing configuration")
		metrics.StoreErrors.WithLabelValues("write", channel.Key()).Inc()
	}
}

// WriteBlob is SetConfiguration reporting the repository error.
func (c *Controller) WriteBlob(ctx context.Context, channel model.Channel, blob string) error {
	c.writes.Lock()
	defer c.writes.Unlock()
	if err := c.Repository.Write(ctx, channel, blob); err != nil {
		return err
	}
	c.stored(channel, blob)
	return nil
}

// ReadBlob reads channel synchronously. An absent blob is returned as the
// empty string.
func (c *Controller) ReadBlob(ctx context.Context, channel model.Channel) (string, error) {
	return c.read(ctx, channel)
}

// GetConfiguration reads channel on a new goroutine and passes the blob to
// continuation. When the repository cannot be reached the last blob seen
// is used instead. After Close the read runs on the caller's goroutine.
func (c *Controller) GetConfiguration(ctx context.Context, channel model.Channel, continuation func(blob string)) {
	c.Lock()
	if c.closed {
		c.Unlock()
		continuation(c.answer(ctx, channel))
		return
	}
	c.pending.Add(1)
	c.Unlock()

	go func() {
		defer c.pending.Done()
		continuation(c.answer(ctx, channel))
	}()
}

func (c *Controller) answer(ctx context.Context, channel model.Channel) string {
	blob, err := c.read(ctx, channel)
	if err != nil {
		logrus.WithError(err).WithField("channel", channel).Error("error reading configuration, using cached copy")
		metrics.StoreErrors.WithLabelValues("read", channel.Key()).Inc()
		c.RLock()
		blob = c.blobs[channel]
		c.RUnlock()
	}
	return blob
}

// ClearConfiguration deletes the blob of channel. Failures are logged.
func (c *Controller) ClearConfiguration(ctx context.Context, channel model.Channel) {
	if err := c.DeleteBlob(ctx, channel); err != nil {
		logrus.WithError(err).WithField("channel", channel).Error("error clearing configuration")
		metrics.StoreErrors.WithLabelValues("delete", channel.Key()).Inc()
	}
}

// DeleteBlob is ClearConfiguration reporting the repository error.
func (c *Controller) DeleteBlob(ctx context.Context, channel model.Channel) error {
	c.writes.Lock()
	defer c.writes.Unlock()
	if err := c.Repository.Delete(ctx, channel); err != nil {
		return err
	}
	c.stored(channel, "")
	return nil
}

// Subscribe registers fn to be called after a channel's blob changed.
// Listeners run on the goroutine that observed the change.
func (c *Controller) Subscribe(fn func(model.Channel)) {
	c.Lock()
	defer c.Unlock()
	c.listeners = append(c.listeners, fn)
}

// IsSetUp reports whether the last blob seen for channel is non-empty.
func (c *Controller) IsSetUp(channel model.Channel) bool {
	c.RLock()
	defer c.RUnlock()
	return c.blobs[channel] != ""
}

// AppConfiguration returns the registered application settings.
func (c *Controller) AppConfiguration() (model.AppWidgetConfiguration, bool) {
	c.RLock()
	defer c.RUnlock()
	if c.app == nil {
		return model.AppWidgetConfiguration{}, false
	}
	return *c.app, true
}

func (c *Controller) Scenes() []model.SceneConfiguration {
	c.RLock()
	defer c.RUnlock()
	return append([]model.SceneConfiguration(nil), c.scenes...)
}

func (c *Controller) Controls() []model.ControlConfiguration {
	c.RLock()
	defer c.RUnlock()
	return append([]model.ControlConfiguration(nil), c.controls...)
}

func (c *Controller) States() []model.StateConfiguration {
	c.RLock()
	defer c.RUnlock()
	return append([]model.StateConfiguration(nil), c.states...)
}

// Healthy reports whether the last refresh succeeded.
func (c *Controller) Healthy() bool {
	c.RLock()
	defer c.RUnlock()
	return c.lastErr == nil && !c.lastRefresh.IsZero()
}

// LastRefresh returns the time of the last refresh and its error.
func (c *Controller) LastRefresh() (time.Time, error) {
	c.RLock()
	defer c.RUnlock()
	return c.lastRefresh, c.lastErr
}

// GetConfig reads channel from the repository and decodes it into data,
// which must be a non-nil pointer. It returns source.ErrNotFound when the
// channel is not set up.
func (c *Controller) GetConfig(ctx context.Context, channel model.Channel, data any) error {
	blob, err := c.Repository.Read(ctx, channel)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(blob), data)
}
