package main

import (
	"strings"
	"testing"
)

func TestHelpRules_Match(t *testing.T) {
	samples := []string{
		"Graph:",
		"  view           Show the dependency view of a requirement",
		"      --http-url string    HTTP server URL",
		`(default "http://localhost:8080")`,
	}
	for i, rule := range helpRules {
		if !rule.re.MatchString(samples[i]) {
			t.Errorf("rule %d does not match %q", i, samples[i])
		}
	}
}

func TestHelpRules_LeaveUsageAlone(t *testing.T) {
	// Usage lines separate words with single spaces.
	line := "  reqgraph view <id> [flags]"
	if helpRules[1].re.MatchString(line) {
		t.Errorf("command rule matched usage line %q", line)
	}
}

func TestColorizeHelp_KeepsText(t *testing.T) {
	in := "Graph:\n  view           Show a view\n\nFlags:\n      --limit int   max (default 50)\n\n"
	out := colorizeHelp(in)
	for _, want := range []string{"Graph:", "view", "Show a view", "Flags:", "--limit", "int", "(default 50)"} {
		if !strings.Contains(out, want) {
			t.Errorf("colorized help lost %q:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(out, "max \x1b[38;5;245m(default 50)\x1b[0m\n") && !strings.HasSuffix(out, "max (default 50)\n") {
		t.Errorf("colorized help ending = %q", out[len(out)-20:])
	}
}
