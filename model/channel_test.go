package model

import "testing"

func TestParseChannel(t *testing.T) {
	cases := map[string]Channel{
		"app":                  AppInfo,
		"common_configuration": AppInfo,
		"Scenes":               SceneList,
		"scene_configuration":  SceneList,
		" controls ":           ControlDeviceList,
		"state_configuration":  StateDeviceList,
	}
	for name, want := range cases {
		got, err := ParseChannel(name)
		if err != nil {
			t.Errorf("ParseChannel(%q): unexpected error %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("ParseChannel(%q) = %v, want %v", name, got, want)
		}
	}

	if _, err := ParseChannel("widgets"); err == nil {
		t.Error("expected error for unknown channel")
	}
}

func TestChannelKinds(t *testing.T) {
	if AppInfo.IsList() {
		t.Error("AppInfo must not be a list channel")
	}
	for _, c := range ListChannels {
		if !c.IsList() {
			t.Errorf("%s should be a list channel", c)
		}
	}
	if Channel(42).Valid() {
		t.Error("Channel(42) should not be valid")
	}
	if got := Channel(42).Key(); got != "channel_42" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestResponseJSON(t *testing.T) {
	if got := Success.JSON(); got != `{"data":"","error":""}` {
		t.Errorf("unexpected success JSON %s", got)
	}
	if got := (Response{Error: "Not Set Up"}).JSON(); got != `{"data":"","error":"Not Set Up"}` {
		t.Errorf("unexpected error JSON %s", got)
	}
}
