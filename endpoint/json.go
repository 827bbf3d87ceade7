package endpoint

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// JSONRenderer serializes a value as JSON and writes it to the response.
//
// The value is encoded into a buffer before WriteHeader is called, so an
// encoding failure is returned without committing the response.
//
// Content-Type is always set to "application/json". HTML characters are not
// escaped, and the body ends with a newline.
type JSONRenderer struct {
	Status int
	Value  any
}

func (jr *JSONRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(jr.Value); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	status := jr.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}
