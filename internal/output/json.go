package output

import (
	"encoding/json"

	"github.com/iplens/iplens/internal/core"
)

// JSONFormatter renders results as JSON. Check output matches the
// GET /blacklist response body.
type JSONFormatter struct {
	Indent bool
}

// FormatCheck renders an aggregate result as JSON.
func (f *JSONFormatter) FormatCheck(_ string, result *core.AggregateResult) (string, error) {
	if result == nil {
		return "", nil
	}
	return f.marshal(result)
}

// FormatLists renders the list catalog as JSON.
func (f *JSONFormatter) FormatLists(lists []core.BlacklistDefinition) (string, error) {
	return f.marshal(map[string]any{"lists": lists})
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
