package bridge

import (
	"context"

	"github.com/sardine-ai/go-widget-config/model"
	"github.com/sardine-ai/go-widget-config/value"
)

func (b *Bridge) SaveSceneList(ctx context.Context, items []any) model.Response {
	return b.SaveChannelList(ctx, model.SceneList, items)
}

func (b *Bridge) GetSceneList(ctx context.Context, continuation func(value.Value)) {
	b.GetChannelList(ctx, model.SceneList, continuation)
}

func (b *Bridge) SaveControlDeviceList(ctx context.Context, items []any) model.Response {
	return b.SaveChannelList(ctx, model.ControlDeviceList, items)
}

func (b *Bridge) GetControlDeviceList(ctx context.Context, continuation func(value.Value)) {
	b.GetChannelList(ctx, model.ControlDeviceList, continuation)
}

func (b *Bridge) SaveStateDeviceList(ctx context.Context, items []any) model.Response {
	return b.SaveChannelList(ctx, model.StateDeviceList, items)
}

func (b *Bridge) GetStateDeviceList(ctx context.Context, continuation func(value.Value)) {
	b.GetChannelList(ctx, model.StateDeviceList, continuation)
}
