package explorer

import (
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"
)

// Signals provides typed access to Datastar signal values. Datastar
// posts all signals as one flat JSON object; names are lowercase
// because of data-bind behavior.
type Signals map[string]any

// String returns a string signal value, or "".
func (s Signals) String(key string) string {
	if v, ok := s[key]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return ""
}

// Int returns an int signal value, or 0. JSON numbers arrive as
// float64.
func (s Signals) Int(key string) int {
	if v, ok := s[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return 0
}

// Float returns a float64 signal value, or 0.
func (s Signals) Float(key string) float64 {
	if v, ok := s[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return 0
}

// SignalsInput captures the raw request body for handlers that receive
// Datastar signals, since the body must be read before streaming
// starts.
type SignalsInput struct {
	RawBody []byte
}

// MustParse parses the signals or returns a Huma 400.
func (i *SignalsInput) MustParse() (Signals, error) {
	var signals Signals
	if err := json.Unmarshal(i.RawBody, &signals); err != nil {
		return nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
	}
	return signals, nil
}
