// Package httputil holds JSON helpers for the status API.
package httputil

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a json object on a http.ResponseWriter with the given
// code, panics on marshaling error. Errors are wrapped into an object with
// an "error" key. Append ?pretty=1 to indent the output.
func WriteJSON(w http.ResponseWriter, r *http.Request, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	if pretty := r.URL.Query().Get("pretty"); pretty == "1" || pretty == "true" {
		enc.SetIndent("", "  ")
	}
	if err, ok := v.(error); ok {
		v = map[string]interface{}{"error": err.Error()}
	}
	if err := enc.Encode(v); err != nil {
		panic(err)
	}
}

// ReadJSON reads the request body to a json object, rejecting unknown
// fields.
func ReadJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
