// Package responseformat writes HTTP responses as JSON, MessagePack or CSV
// depending on the request's format query parameter.
package responseformat

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Supported values of the format query parameter
const (
	FormatJSON    = "json"
	FormatMsgPack = "msgpack"
	FormatCSV     = "csv"
)

// Tabular is implemented by results that can render themselves as CSV
type Tabular interface {
	CSV() ([]byte, error)
}

// Formatter handles encoding and writing responses
type Formatter struct{}

// NewFormatter creates a new response formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// Format returns the requested response format. JSON is the default.
func Format(req *http.Request) string {
	switch f := req.URL.Query().Get("format"); f {
	case FormatMsgPack, FormatCSV:
		return f
	}
	return FormatJSON
}

// WriteResponse writes data with the given status in the format selected by
// the format query parameter. CSV is only honoured when data is Tabular;
// other values fall back to JSON.
func (f *Formatter) WriteResponse(w http.ResponseWriter, req *http.Request, status int, data any) error {
	// Always set CORS header
	w.Header().Set("Access-Control-Allow-Origin", "*")

	switch Format(req) {
	case FormatMsgPack:
		return f.writeMsgPack(w, status, data)
	case FormatCSV:
		if t, ok := data.(Tabular); ok {
			return f.writeCSV(w, status, t)
		}
	}
	return f.writeJSON(w, status, data)
}

// ErrorBody is the payload of every error response
type ErrorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// WriteError writes err as an ErrorBody. CSV requests get JSON errors.
func (f *Formatter) WriteError(w http.ResponseWriter, req *http.Request, status int, err error) error {
	body := ErrorBody{Error: err.Error(), Status: status}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if Format(req) == FormatMsgPack {
		return f.writeMsgPack(w, status, body)
	}
	return f.writeJSON(w, status, body)
}

// WriteRawJSON writes pre-encoded JSON data, wrapped with the time it was
// produced
func (f *Formatter) WriteRawJSON(w http.ResponseWriter, req *http.Request, jsonBytes []byte, wrapper *JSONWrapper) error {
	// Always set CORS header
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if Format(req) == FormatMsgPack {
		// Need to decode JSON then encode as MessagePack
		var data any
		if err := json.Unmarshal(jsonBytes, &data); err != nil {
			return err
		}
		if wrapper != nil {
			data = map[string]any{
				"lastUpdated": wrapper.LastUpdated.UTC().Format(time.RFC3339),
				"data":        data,
			}
		}
		return f.writeMsgPack(w, http.StatusOK, data)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if wrapper != nil {
		w.Write([]byte(`{"lastUpdated": "` + wrapper.LastUpdated.UTC().Format(time.RFC3339) + `", "data": `))
		w.Write(jsonBytes)
		_, err := w.Write([]byte("}"))
		return err
	}
	_, err := w.Write(jsonBytes)
	return err
}

func (f *Formatter) writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func (f *Formatter) writeMsgPack(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/x-msgpack")
	w.WriteHeader(status)
	encoder := msgpack.NewEncoder(w)
	encoder.SetCustomStructTag("json") // Use json tags for MessagePack
	return encoder.Encode(data)
}

func (f *Formatter) writeCSV(w http.ResponseWriter, status int, t Tabular) error {
	body, err := t.CSV()
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}

// JSONWrapper is used for wrapping raw JSON data with metadata
type JSONWrapper struct {
	LastUpdated time.Time
}
