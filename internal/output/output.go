package output

import (
	"fmt"
	"strings"

	"github.com/iplens/iplens/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders check results and list catalogs.
type Formatter interface {
	FormatCheck(ip string, result *core.AggregateResult) (string, error)
	FormatLists(lists []core.BlacklistDefinition) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &TableFormatter{Markdown: true}
	default:
		return &TableFormatter{}
	}
}

// statusLabel is the single-word verdict for one list.
func statusLabel(o core.ProbeOutcome) string {
	switch {
	case o.Listed:
		return "LISTED"
	case o.Error:
		return "ERROR"
	default:
		return "clean"
	}
}
