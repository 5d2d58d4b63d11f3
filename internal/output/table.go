package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/iplens/iplens/internal/core"
)

// TableFormatter renders results as an ASCII table, or a Markdown table when
// Markdown is set.
type TableFormatter struct {
	Markdown bool
}

// FormatCheck renders one row per list with a listed/total footer.
func (f *TableFormatter) FormatCheck(ip string, result *core.AggregateResult) (string, error) {
	if result == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	if ip != "" {
		t.SetTitle(ip)
	}
	t.AppendHeader(table.Row{"List", "Description", "Status", "Codes"})

	for _, check := range result.Checks {
		t.AppendRow(table.Row{
			check.Name,
			check.Description,
			statusLabel(check),
			strings.Join(check.Codes, ", "),
		})
	}

	summary := fmt.Sprintf("%d/%d listed", result.ListedCount, result.Total)
	if errored := result.Errored(); errored > 0 {
		summary += fmt.Sprintf(", %d unknown", errored)
	}
	t.AppendFooter(table.Row{"", "", summary, ""})

	return f.render(t), nil
}

// FormatLists renders the configured list catalog.
func (f *TableFormatter) FormatLists(lists []core.BlacklistDefinition) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Name", "Zone", "Description"})
	for i, list := range lists {
		t.AppendRow(table.Row{i + 1, list.Name, list.Host, list.Description})
	}
	return f.render(t), nil
}

func (f *TableFormatter) render(t table.Writer) string {
	if f.Markdown {
		return t.RenderMarkdown()
	}
	return t.Render()
}
