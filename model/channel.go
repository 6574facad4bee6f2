package model

import (
	"fmt"
	"strings"
)

// Channel is a named configuration slot. Each channel owns exactly one
// serialized blob in the configuration store.
type Channel int

const (
	AppInfo Channel = iota
	SceneList
	ControlDeviceList
	StateDeviceList
)

// Channels lists every channel in a stable order.
var Channels = []Channel{AppInfo, SceneList, ControlDeviceList, StateDeviceList}

// ListChannels are the channels whose blob is a JSON array.
var ListChannels = []Channel{SceneList, ControlDeviceList, StateDeviceList}

var channelKeys = map[Channel]string{
	AppInfo:           "common_configuration",
	SceneList:         "scene_configuration",
	ControlDeviceList: "control_configuration",
	StateDeviceList:   "state_configuration",
}

var channelAliases = map[string]Channel{
	"app":      AppInfo,
	"app-info": AppInfo,
	"scenes":   SceneList,
	"controls": ControlDeviceList,
	"states":   StateDeviceList,
}

// Key returns the storage key of the channel.
func (c Channel) Key() string {
	if key, ok := channelKeys[c]; ok {
		return key
	}
	return fmt.Sprintf("channel_%d", int(c))
}

func (c Channel) String() string {
	return c.Key()
}

// IsList reports whether the channel holds a JSON array.
func (c Channel) IsList() bool {
	return c == SceneList || c == ControlDeviceList || c == StateDeviceList
}

// Valid reports whether c is one of the known channels.
func (c Channel) Valid() bool {
	_, ok := channelKeys[c]
	return ok
}

// ParseChannel resolves a storage key or short alias ("app", "scenes",
// "controls", "states") to a Channel.
func ParseChannel(name string) (Channel, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if c, ok := channelAliases[name]; ok {
		return c, nil
	}
	for c, key := range channelKeys {
		if key == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown channel %q", name)
}
