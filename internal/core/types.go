package core

// BlacklistDefinition describes one DNS-based blackhole list.
type BlacklistDefinition struct {
	Name        string `json:"name" yaml:"name" mapstructure:"name"`
	Host        string `json:"host" yaml:"host" mapstructure:"host"`
	Description string `json:"description" yaml:"description" mapstructure:"description"`
}

// ProbeOutcome reports the result of querying a single list.
//
// Error marks an indeterminate outcome (timeout or unexpected resolver
// failure). Listed is always false when Error is set.
type ProbeOutcome struct {
	Name        string   `json:"name"`
	Description string   `json:"desc"`
	Listed      bool     `json:"listed"`
	Error       bool     `json:"error"`
	Codes       []string `json:"codes,omitempty"`
}

// Indeterminate reports whether the outcome must not be read as "not listed".
func (o ProbeOutcome) Indeterminate() bool {
	return o.Error
}

// AggregateResult collects outcomes for every configured list in
// configuration order.
type AggregateResult struct {
	Checks      []ProbeOutcome `json:"checks"`
	ListedCount int            `json:"listedCount"`
	Total       int            `json:"total"`
}

// Errored returns the number of indeterminate outcomes.
func (r *AggregateResult) Errored() int {
	if r == nil {
		return 0
	}
	count := 0
	for _, check := range r.Checks {
		if check.Error {
			count++
		}
	}
	return count
}
