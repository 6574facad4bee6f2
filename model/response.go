package model

import "encoding/json"

// Response acknowledges a write from the calling layer. By convention at
// most one of the two fields is non-empty; the empty string means absent.
type Response struct {
	Data  string `json:"data"`
	Error string `json:"error"`
}

// Success is the acknowledgement returned for every completed write.
var Success = Response{}

// JSON renders the response the way it is handed to calling-layer callbacks.
func (r Response) JSON() string {
	b, _ := json.Marshal(r)
	return string(b)
}
