package nginx

// FilterSpec is a raw user-supplied data filter specification
type FilterSpec struct {
	Metric       string            `json:"metric,omitempty" yaml:"metric,omitempty"`
	FilterRuleID string            `json:"filter_rule_id,omitempty" yaml:"filter_rule_id,omitempty"`
	Data         map[string]string `json:"data,omitempty" yaml:"data,omitempty"`
}

// Filter is a constructed data filter, opaque to the instance model beyond
// being handed to collectors
type Filter struct {
	Metric  string
	RuleID  string
	Matches map[string]string
}

// NewFilters builds filters from raw specs, preserving their order
func NewFilters(specs []FilterSpec) []Filter {
	if len(specs) == 0 {
		return nil
	}
	filters := make([]Filter, 0, len(specs))
	for _, spec := range specs {
		matches := make(map[string]string, len(spec.Data))
		for variable, value := range spec.Data {
			matches[variable] = value
		}
		filters = append(filters, Filter{
			Metric:  spec.Metric,
			RuleID:  spec.FilterRuleID,
			Matches: matches,
		})
	}
	return filters
}
