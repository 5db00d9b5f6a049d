package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alfredjeanlab/reqgraph/internal/ui"
	"github.com/spf13/cobra"
)

// helpRule rewrites every match of re in cobra's plain help text.
type helpRule struct {
	re      *regexp.Regexp
	rewrite func(groups []string) string
}

var helpRules = []helpRule{
	// Group and section headers such as "Graph:" or "Flags:".
	{
		re:      regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`),
		rewrite: func(g []string) string { return ui.RenderAccent(g[1]) },
	},
	// Command names in the command listing.
	{
		re:      regexp.MustCompile(`(?m)^(  )([a-z][\w-]*)(  +)`),
		rewrite: func(g []string) string { return g[1] + ui.RenderCommand(g[2]) + g[3] },
	},
	// Flag value types, e.g. "--limit int".
	{
		re:      regexp.MustCompile(`(--[\w-]+ )(strings|string|int|duration)\b`),
		rewrite: func(g []string) string { return g[1] + ui.RenderMuted(g[2]) },
	},
	{
		re:      regexp.MustCompile(`\(default [^)]*\)`),
		rewrite: func(g []string) string { return ui.RenderMuted(g[0]) },
	},
}

// colorizedHelpFunc renders cobra's usage text and styles it when stdout is
// a color terminal.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelp(buf.String()))
	}
}

func colorizeHelp(s string) string {
	for _, rule := range helpRules {
		s = rule.re.ReplaceAllStringFunc(s, func(match string) string {
			groups := rule.re.FindStringSubmatch(match)
			if groups == nil {
				return match
			}
			return rule.rewrite(groups)
		})
	}
	return strings.TrimRight(s, "\n") + "\n"
}
