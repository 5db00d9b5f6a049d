package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/reqgraph/internal/history"
	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var historyCmd = &cobra.Command{
	Use:     "history <id>",
	Short:   "Show the change history of a requirement",
	GroupID: "history",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := historyFilter(cmd.Flags(), time.Now())
		if err != nil {
			return err
		}
		events, err := graphClient.GetHistory(context.Background(), args[0], filter)
		if err != nil {
			return fmt.Errorf("getting history: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), events)
		}
		printHistory(cmd.OutOrStdout(), events)
		return nil
	},
}

var recordCmd = &cobra.Command{
	Use:     "record <id>",
	Short:   "Append a change to a requirement's history",
	GroupID: "history",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := recordEvent(cmd.Flags(), args[0])
		if err != nil {
			return err
		}
		stored, err := graphClient.RecordChange(context.Background(), e)
		if err != nil {
			return fmt.Errorf("recording change: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), stored)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s %s on %s\n", stored.ID, stored.Action, stored.RequirementID)
		return nil
	},
}

func historyFilter(fs *pflag.FlagSet, now time.Time) (model.HistoryFilter, error) {
	var f model.HistoryFilter
	actions, _ := fs.GetStringSlice("action")
	for _, a := range actions {
		f.Actions = append(f.Actions, model.HistoryAction(a))
	}
	f.OperatorID, _ = fs.GetString("operator")
	f.Limit, _ = fs.GetInt("limit")
	f.Ascending, _ = fs.GetBool("asc")

	for _, b := range []struct {
		flag string
		dst  **time.Time
	}{
		{"since", &f.Since},
		{"until", &f.Until},
	} {
		s, _ := fs.GetString(b.flag)
		if s == "" {
			continue
		}
		t, err := parseTimeFlag(s, now)
		if err != nil {
			return f, fmt.Errorf("--%s: %w", b.flag, err)
		}
		*b.dst = &t
	}
	return f, nil
}

// parseTimeFlag accepts RFC 3339, a plain date, or a duration meaning that
// long before now ("36h").
func parseTimeFlag(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, time.Local); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return now.Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q (want RFC 3339, YYYY-MM-DD or a duration)", s)
}

// recordEvent builds the event for "record" from its flags. Builtin actions
// go through the matching history constructor, so their values and
// description follow the same shape as events the server records itself.
// Only fields whose value actually changed are listed as changed.
func recordEvent(fs *pflag.FlagSet, id string) (*model.HistoryEvent, error) {
	action, _ := fs.GetString("action")
	desc, _ := fs.GetString("description")
	result, _ := fs.GetString("result")
	errMsg, _ := fs.GetString("error")
	tags, _ := fs.GetStringSlice("tag")

	oldVals, err := keyValues(fs, "old")
	if err != nil {
		return nil, err
	}
	newVals, err := keyValues(fs, "set")
	if err != nil {
		return nil, err
	}

	// Operator and origin are left empty for the server to fill.
	var o history.Origin
	var e *model.HistoryEvent
	switch model.HistoryAction(action) {
	case model.ActionStatusChange:
		to, ok := newVals["status"].(string)
		if !ok {
			return nil, fmt.Errorf("--action %s needs --set status=<value>", action)
		}
		from, _ := oldVals["status"].(string)
		e = history.ForStatusChange(id, "", from, to, o)
	case model.ActionAssign:
		to, _ := newVals["assignee_id"].(string)
		from, _ := oldVals["assignee_id"].(string)
		if to == "" && from == "" {
			return nil, fmt.Errorf("--action %s needs --set or --old assignee_id=<value>", action)
		}
		e = history.ForAssign(id, "", from, to, o)
	case model.ActionDelete:
		e = history.ForDelete(id, "", oldVals, o)
	case model.ActionUpdate:
		if desc == "" && len(history.Diff(oldVals, newVals)) == 0 {
			return nil, errors.New("--action update needs a changed --set/--old value or --description")
		}
		e = history.ForUpdate(id, "", oldVals, newVals, nil, o)
	default:
		if desc == "" {
			return nil, fmt.Errorf("--description is required for action %s", action)
		}
		e = o.Apply(&model.HistoryEvent{
			RequirementID: id,
			Action:        model.HistoryAction(action),
			OldValues:     oldVals,
			NewValues:     newVals,
		})
		if oldVals != nil || newVals != nil {
			e.ChangedFields = history.Diff(oldVals, newVals)
		}
	}

	if desc != "" {
		e.Description = desc
	}
	if len(e.ChangedFields) == 0 {
		e.ChangedFields = nil
	}
	e.Tags = tags
	e.Result = model.HistoryResult(result)
	if e.Result == model.ResultFailed || errMsg != "" {
		var cause error
		if errMsg != "" {
			cause = errors.New(errMsg)
		}
		e = history.Failed(e, cause)
	}
	return e, nil
}

func keyValues(fs *pflag.FlagSet, flag string) (map[string]any, error) {
	pairs, _ := fs.GetStringSlice(flag)
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --%s %q (want field=value)", flag, kv)
		}
		out[k] = v
	}
	return out, nil
}

func addHistoryFlags(h *pflag.FlagSet) {
	h.StringSlice("action", nil, "only these actions (repeatable)")
	h.String("operator", "", "only events by this operator")
	h.String("since", "", "events at or after this time")
	h.String("until", "", "events before this time")
	h.Int("limit", 50, "maximum number of events")
	h.Bool("asc", false, "oldest first")
}

func addRecordFlags(r *pflag.FlagSet) {
	r.String("action", string(model.ActionUpdate), "action, a builtin or namespace:name")
	r.StringP("description", "m", "", "description of the change (builtin actions describe themselves)")
	r.String("result", string(model.ResultSuccess), "result (success, failed, partial)")
	r.String("error", "", "error message for a failed result")
	r.StringSlice("tag", nil, "tag (repeatable)")
	r.StringSlice("old", nil, "previous field value as field=value (repeatable)")
	r.StringSlice("set", nil, "new field value as field=value (repeatable)")
}

func init() {
	addHistoryFlags(historyCmd.Flags())
	addRecordFlags(recordCmd.Flags())
}
