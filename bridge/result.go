package bridge

import "github.com/sardine-ai/go-widget-config/value"

// Result keys and messages understood by the calling layer. The two error
// keys differ on purpose: existing callers test for "error" to detect an
// empty store and for "err" to detect a corrupt one.
const (
	DataKey      = "data"
	NotSetUpKey  = "error"
	JSONErrorKey = "err"

	NotSetUpMessage  = "Not Set Up"
	JSONErrorMessage = "JSON ERROR"
)

// Data wraps a list read from the store.
func Data(list value.Value) value.Value {
	return single(DataKey, list)
}

// NotSetUp is the result for a channel that has never been written.
func NotSetUp() value.Value {
	return single(NotSetUpKey, value.String(NotSetUpMessage))
}

// JSONError is the result for a channel whose blob is not a JSON array.
func JSONError() value.Value {
	return single(JSONErrorKey, value.String(JSONErrorMessage))
}

func single(key string, v value.Value) value.Value {
	m := value.NewMap()
	m.Set(key, v)
	return value.Object(m)
}

// IsNotSetUp reports whether result is the NotSetUp result.
func IsNotSetUp(result value.Value) bool {
	msg, ok := result.Get(NotSetUpKey)
	return ok && msg.Str() == NotSetUpMessage
}

// IsJSONError reports whether result is the JSONError result.
func IsJSONError(result value.Value) bool {
	msg, ok := result.Get(JSONErrorKey)
	return ok && msg.Str() == JSONErrorMessage
}

// DataOf returns the list carried by a Data result.
func DataOf(result value.Value) (value.Value, bool) {
	return result.Get(DataKey)
}
