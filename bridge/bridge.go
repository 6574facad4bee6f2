// Package bridge converts widget configuration between the calling layer's
// generic data and the JSON blobs kept by a configuration store. Every
// channel is routed through the same set/get/clear contract.
package bridge

import (
	"context"
	"sort"

	"github.com/sardine-ai/go-widget-config/metrics"
	"github.com/sardine-ai/go-widget-config/model"
	"github.com/sardine-ai/go-widget-config/value"
	"github.com/sirupsen/logrus"
)

// Store keeps one serialized blob per channel.
type Store interface {
	// SetConfiguration replaces the blob of channel. Failures are the
	// store's to report.
	SetConfiguration(ctx context.Context, channel model.Channel, blob string)
	// GetConfiguration reads the blob of channel and hands it to
	// continuation, on a goroutine of the store's choosing. An absent blob
	// is passed as the empty string.
	GetConfiguration(ctx context.Context, channel model.Channel, continuation func(blob string))
	// ClearConfiguration makes the blob of channel absent.
	ClearConfiguration(ctx context.Context, channel model.Channel)
}

// Bridge holds no state of its own besides the store, so a single Bridge may
// be shared by any number of goroutines.
type Bridge struct {
	store Store
}

// New returns a Bridge writing to and reading from store.
func New(store Store) *Bridge {
	return &Bridge{store: store}
}

// SetUpAppInfo registers the application settings. Entries that cannot be
// represented as configuration values are logged and left out. Keys are
// written in sorted order.
func (b *Bridge) SetUpAppInfo(ctx context.Context, payload map[string]any) {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	info := value.NewMap()
	for _, key := range keys {
		v, err := value.FromNative(payload[key])
		if err != nil {
			logrus.WithError(err).WithField("key", key).Warn("skipping app info entry")
			continue
		}
		info.Set(key, v)
	}
	b.SetUpAppInfoValue(ctx, info)
}

// SetUpAppInfoValue registers application settings that are already a
// configuration tree, keeping their key order. A nil map registers an empty
// object.
func (b *Bridge) SetUpAppInfoValue(ctx context.Context, info *value.Map) {
	if info == nil {
		info = value.NewMap()
	}
	blob, err := info.MarshalJSON()
	if err != nil {
		logrus.WithError(err).Error("error serializing app info")
		metrics.RecordOperation("set_up_app_info", model.AppInfo.Key(), metrics.OutcomeError)
		return
	}
	logrus.WithField("channel", model.AppInfo).Debug(string(blob))
	b.store.SetConfiguration(ctx, model.AppInfo, string(blob))
	metrics.RecordOperation("set_up_app_info", model.AppInfo.Key(), metrics.OutcomeOK)
}

// SaveChannelList stores items as the JSON array of channel. Items may be
// plain Go data or value.Value trees; items that cannot be converted are
// logged and dropped. The returned Response is always the success
// acknowledgement.
func (b *Bridge) SaveChannelList(ctx context.Context, channel model.Channel, items []any) model.Response {
	list := make([]value.Value, 0, len(items))
	for i, item := range items {
		v, err := value.FromNative(item)
		if err != nil {
			logrus.WithError(err).WithField("channel", channel).WithField("index", i).Warn("dropping list item")
			metrics.RecordOperation("save", channel.Key(), metrics.OutcomeDropped)
			continue
		}
		list = append(list, v)
	}
	b.SaveChannelValue(ctx, channel, value.List(list...))
	return model.Success
}

// SaveChannelValue stores an already converted list as the blob of channel.
// A value that is not a list is stored as given; readers will report it as
// a JSON error.
func (b *Bridge) SaveChannelValue(ctx context.Context, channel model.Channel, list value.Value) model.Response {
	blob, err := list.MarshalJSON()
	if err != nil {
		logrus.WithError(err).WithField("channel", channel).Error("error serializing list")
		metrics.RecordOperation("save", channel.Key(), metrics.OutcomeError)
		return model.Success
	}
	b.store.SetConfiguration(ctx, channel, string(blob))
	metrics.RecordOperation("save", channel.Key(), metrics.OutcomeOK)
	return model.Success
}

// GetChannelList reads the list of channel and passes the result to
// continuation once the store answers. The result is always an object
// holding exactly one of:
//
//	{"data": [...]}          the stored list
//	{"error": "Not Set Up"}  nothing stored
//	{"err": "JSON ERROR"}    the stored blob is not a JSON array
func (b *Bridge) GetChannelList(ctx context.Context, channel model.Channel, continuation func(result value.Value)) {
	b.store.GetConfiguration(ctx, channel, func(blob string) {
		continuation(decodeList(channel, blob))
	})
}

// GetChannelListSync is GetChannelList waiting for the result. It fails
// only when ctx ends before the store answers.
func (b *Bridge) GetChannelListSync(ctx context.Context, channel model.Channel) (value.Value, error) {
	done := make(chan value.Value, 1)
	b.GetChannelList(ctx, channel, func(result value.Value) {
		done <- result
	})
	select {
	case result := <-done:
		return result, nil
	case <-ctx.Done():
		return value.Null(), ctx.Err()
	}
}

func decodeList(channel model.Channel, blob string) value.Value {
	if blob == "" {
		metrics.RecordOperation("get", channel.Key(), metrics.OutcomeNotSetUp)
		return NotSetUp()
	}
	list, err := value.ParseArray([]byte(blob))
	if err != nil {
		logrus.WithError(err).WithField("channel", channel).Warn("stored list is not valid JSON")
		metrics.RecordOperation("get", channel.Key(), metrics.OutcomeJSONError)
		return JSONError()
	}
	metrics.RecordOperation("get", channel.Key(), metrics.OutcomeOK)
	return Data(list)
}

// ClearAllData forgets the application settings and empties every list
// channel. Lists read back as empty data afterwards, not as "Not Set Up".
func (b *Bridge) ClearAllData(ctx context.Context) model.Response {
	b.store.ClearConfiguration(ctx, model.AppInfo)
	for _, channel := range model.ListChannels {
		b.store.SetConfiguration(ctx, channel, "[]")
	}
	metrics.RecordOperation("clear_all", "all", metrics.OutcomeOK)
	return model.Success
}
