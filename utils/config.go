package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// Config holds check-run configuration
type Config struct {
	Protocols []string
	Tolerance float64
	LogDir    string
	CaseFile  string
	Verbose   bool
}

// ParseProtocols parses a comma-separated protocol list. An empty
// string means "all registered protocols" and yields nil.
func ParseProtocols(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseAxes parses an axis list into integers. "none" or the empty
// string selects a full reduction and yields (nil, false, nil);
// otherwise the comma-separated axes are returned with ok=true.
func ParseAxes(s string) ([]int, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "none" {
		return nil, false, nil
	}
	var axes []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, false, fmt.Errorf("bad axis %q: %w", part, err)
		}
		axes = append(axes, n)
	}
	return axes, true, nil
}

// ValidateConfig validates check-run configuration. A zero tolerance
// means "use the per-protocol default" and an empty log directory
// disables tracing, so both are allowed.
func ValidateConfig(config *Config) error {
	if config.Tolerance < 0 {
		return fmt.Errorf("tolerance must not be negative")
	}

	if config.CaseFile != "" && len(config.Protocols) > 0 {
		return fmt.Errorf("a case file carries its own protocol list; do not combine it with a protocol filter")
	}

	return nil
}
