package dnsbl

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iplens/iplens/internal/core"
)

// DefaultLists returns the built-in list catalog in its fixed order.
func DefaultLists() []core.BlacklistDefinition {
	return []core.BlacklistDefinition{
		{Name: "SpamCop", Host: "bl.spamcop.net", Description: "Known spam sources"},
		{Name: "SORBS", Host: "dnsbl.sorbs.net", Description: "Spam & open proxies"},
		{Name: "Barracuda", Host: "b.barracudacentral.org", Description: "Email spam"},
		{Name: "UCEPROTECT", Host: "dnsbl-1.uceprotect.net", Description: "Spam sources"},
	}
}

type listsFile struct {
	Lists []core.BlacklistDefinition `yaml:"lists"`
}

// LoadListsFile reads a YAML catalog of the form:
//
//	lists:
//	  - name: SpamCop
//	    host: bl.spamcop.net
//	    description: Known spam sources
func LoadListsFile(path string) ([]core.BlacklistDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lists file: %w", err)
	}

	var doc listsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse lists file %s: %w", path, err)
	}

	lists, err := NormalizeLists(doc.Lists)
	if err != nil {
		return nil, fmt.Errorf("lists file %s: %w", path, err)
	}
	return lists, nil
}

// NormalizeLists trims definitions, drops a trailing dot from hosts, and
// rejects empty or duplicate entries. Order is preserved.
func NormalizeLists(lists []core.BlacklistDefinition) ([]core.BlacklistDefinition, error) {
	if len(lists) == 0 {
		return nil, fmt.Errorf("at least one list is required")
	}

	out := make([]core.BlacklistDefinition, 0, len(lists))
	seen := make(map[string]struct{}, len(lists))
	for i, list := range lists {
		list.Name = strings.TrimSpace(list.Name)
		list.Host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(list.Host)), ".")
		list.Description = strings.TrimSpace(list.Description)

		if list.Name == "" {
			return nil, fmt.Errorf("list %d: name is required", i)
		}
		if list.Host == "" {
			return nil, fmt.Errorf("list %q: host is required", list.Name)
		}
		if _, dup := seen[list.Host]; dup {
			return nil, fmt.Errorf("list %q: duplicate host %s", list.Name, list.Host)
		}
		seen[list.Host] = struct{}{}
		out = append(out, list)
	}
	return out, nil
}
