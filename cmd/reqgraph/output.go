package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/alfredjeanlab/reqgraph/internal/ui"
	"github.com/jedib0t/go-pretty/v6/table"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	return tw
}

func printView(w io.Writer, v *model.DependencyView) {
	state := ui.RenderPass("ready")
	if v.IsBlocked {
		state = ui.RenderFail("blocked")
	}
	fmt.Fprintf(w, "%s  %s  impact %s  v%d\n",
		ui.RenderAccent(v.RequirementID), state,
		ui.RenderImpact(v.Statistics.EstimatedImpact.String()), v.Version)
	if v.Parent != nil {
		fmt.Fprintf(w, "Parent:   %s %s\n", v.Parent.ID, ui.RenderMuted(v.Parent.Title))
	}
	if len(v.Ancestors) > 1 {
		path := slices.Clone(v.Ancestors)
		slices.Reverse(path)
		fmt.Fprintf(w, "Path:     %s\n", strings.Join(path, " > "))
	}
	if len(v.CriticalPath) > 0 {
		fmt.Fprintf(w, "Critical: %s\n", strings.Join(v.CriticalPath, " -> "))
	}
	if v.Statistics.TotalSubtasks > 0 {
		fmt.Fprintf(w, "Subtasks: %s %d%% (%d/%d)\n",
			ui.ProgressBar(v.SubtaskProgress, 20), v.SubtaskProgress,
			v.Statistics.CompletedSubtasks, v.Statistics.TotalSubtasks)
	}

	groups := []struct {
		label string
		refs  []model.RequirementRef
	}{
		{"prerequisite", v.Prerequisites},
		{"dependent", v.Dependents},
		{"related", v.Related},
		{"duplicate", v.Duplicates},
		{"subtask", v.Subtasks},
	}
	total := 0
	for _, g := range groups {
		total += len(g.refs)
	}
	if total == 0 {
		fmt.Fprintln(w, ui.RenderMuted("No edges."))
		return
	}

	width := ui.TerminalWidth(100)
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Side", "ID", "Relation", "Status", "Priority", "Progress", "Title"})
	for _, g := range groups {
		for _, r := range g.refs {
			progress := ""
			if r.Progress != nil {
				progress = strconv.Itoa(*r.Progress) + "%"
			}
			tw.AppendRow(table.Row{
				g.label,
				r.ID,
				ui.RenderRelation(r.RelationType.String()),
				ui.RenderStatus(r.Status),
				r.Priority,
				progress,
				ui.Truncate(r.Title, max(20, width-70)),
			})
		}
	}
	tw.Render()
}

func printEdge(w io.Writer, e *model.GraphEdge) {
	fmt.Fprintf(w, "%s %s %s %s\n", ui.RenderPass("Added"),
		e.Source, ui.RenderRelation(e.Type.String()), e.Target)
}

func printGraphConfig(w io.Writer, cfg *model.GraphConfig) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Setting", "Value"})
	tw.AppendRow(table.Row{"layout", cfg.Layout})
	tw.AppendRow(table.Row{"direction", cfg.Direction})
	tw.AppendRow(table.Row{"node_spacing", cfg.NodeSpacing})
	tw.AppendRow(table.Row{"level_spacing", cfg.LevelSpacing})
	tw.AppendRow(table.Row{"show_labels", cfg.ShowLabels})
	tw.AppendRow(table.Row{"show_types", cfg.ShowTypes})
	for _, k := range sortedKeys(cfg.ColorScheme) {
		tw.AppendRow(table.Row{"color." + k, cfg.ColorScheme[k]})
	}
	tw.Render()
}

func printCriticalPath(w io.Writer, id string, path []string) {
	if len(path) == 0 {
		fmt.Fprintf(w, "%s has no open blockers\n", id)
		return
	}
	for i, step := range path {
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", i), step)
	}
	fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", len(path)), ui.RenderAccent(id))
}

func printHistory(w io.Writer, events []*model.HistoryEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No history found.")
		return
	}
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Time", "Action", "Operator", "Result", "Description"})
	for _, e := range events {
		result := string(e.Result)
		if e.IsFailed() {
			result = ui.RenderFail(result)
		}
		desc := e.Description
		if changes := e.FieldChangeDescriptions(); len(changes) > 0 {
			desc += "\n" + ui.RenderMuted(strings.Join(changes, "\n"))
		}
		tw.AppendRow(table.Row{
			e.CreatedAt.Local().Format(timeLayout),
			e.Action,
			e.OperatorID,
			result,
			desc,
		})
	}
	tw.Render()
	fmt.Fprintf(w, "%d events\n", len(events))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
