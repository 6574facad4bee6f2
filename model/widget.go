package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AppWidgetConfiguration is the common configuration shared by all widgets,
// stored in the AppInfo channel.
type AppWidgetConfiguration struct {
	AppKey      string `json:"appKey"`      // application id issued by the cloud platform
	UID         string `json:"uid"`         // user id
	Token       string `json:"token"`       // user token
	OpenURL     string `json:"openUrl"`     // Open API base URL
	AepURL      string `json:"aepUrl"`      // AEP API base URL
	M2MURL      string `json:"m2mUrl"`      // production m2m address
	M2MStageURL string `json:"m2mStageUrl"` // staging m2m address
	LanguageKey string `json:"languageKey"` // language used by widget labels
	TintColor   string `json:"tintColor"`   // theme colour, #RRGGBB
}

// SceneConfiguration is one entry of the SceneList channel.
type SceneConfiguration struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	HomeID   ID     `json:"homeId"`
	HomeName string `json:"homeName"`
	Icon     string `json:"icon"`
}

// ControlConfiguration is one device of the ControlDeviceList channel.
type ControlConfiguration struct {
	Name       string          `json:"name,omitempty"`
	Icon       string          `json:"icon"`
	Language   Language        `json:"language,omitempty"`
	ProductKey string          `json:"productKey"`
	Configs    []ControlConfig `json:"config"`
	DeviceID   string          `json:"did"`
	DeviceMAC  string          `json:"mac"`
}

// ControlConfig describes one controllable attribute of a device.
type ControlConfig struct {
	ID        ID              `json:"id"`
	EditName  string          `json:"editName"`
	AttrsIcon string          `json:"attrsIcon"`
	Type      string          `json:"type"` // Boolean, Number or Enumeration
	Attrs     string          `json:"attrs"`
	Options   []ControlOption `json:"option"`
}

// ControlOption is one selectable value of a ControlConfig.
type ControlOption struct {
	Name        string `json:"name"`
	Image       string `json:"image"`
	Value       any    `json:"value"`
	NotInOption bool   `json:"notInOption,omitempty"`
}

// StateConfiguration is one device attribute of the StateDeviceList channel.
type StateConfiguration struct {
	ID       ID             `json:"id"`
	DeviceID string         `json:"did"`
	Attrs    string         `json:"attrs"`
	EditName string         `json:"editName"`
	Title    *StateTitle    `json:"title,omitempty"`
	Icon     string         `json:"icon,omitempty"`
	Language Language       `json:"language,omitempty"`
	Type     string         `json:"type"`
	Content  []StateContent `json:"content"`
}

type StateTitle struct {
	Text  string `json:"text"`
	Color string `json:"color,omitempty"`
}

// StateContent is shown when all of its conditions hold.
type StateContent struct {
	Conditions []StateCondition `json:"conditions"`
	Text       string           `json:"text"`
	Image      string           `json:"image"`
}

type StateCondition struct {
	Opt   string `json:"opt"` // <=, >=, <, >, == or !=
	Value any    `json:"value"`
}

// Language maps a language key ("zh", "en", ...) to its label table.
type Language map[string]map[string]string

// Label looks up a label for languageKey, falling back to "zh" like the
// widgets do.
func (l Language) Label(languageKey, name string) string {
	if table, ok := l[languageKey]; ok {
		if label, ok := table[name]; ok {
			return label
		}
	}
	if table, ok := l["zh"]; ok {
		if label, ok := table[name]; ok {
			return label
		}
	}
	return name
}

// ID is an identifier that arrives either as a JSON string or a JSON number.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}
