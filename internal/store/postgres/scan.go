package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/reqgraph/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// graphColumnValues holds the encoded JSONB columns of a graph row.
type graphColumnValues struct {
	prerequisites []byte
	dependents    []byte
	related       []byte
	duplicates    []byte
	subtasks      []byte
	parent        []byte
	statistics    []byte
	graphConfig   []byte
}

func graphValues(g *model.DependencyGraph) (graphColumnValues, error) {
	var (
		v   graphColumnValues
		err error
	)
	for _, f := range []struct {
		dst  *[]byte
		refs []model.RequirementRef
	}{
		{&v.prerequisites, g.Prerequisites},
		{&v.dependents, g.Dependents},
		{&v.related, g.Related},
		{&v.duplicates, g.Duplicates},
		{&v.subtasks, g.Subtasks},
	} {
		if *f.dst, err = refsJSON(f.refs); err != nil {
			return v, err
		}
	}
	if g.Parent != nil {
		if v.parent, err = json.Marshal(g.Parent); err != nil {
			return v, fmt.Errorf("encode parent: %w", err)
		}
	}
	if v.statistics, err = json.Marshal(g.Statistics); err != nil {
		return v, fmt.Errorf("encode statistics: %w", err)
	}
	if g.GraphConfig != nil {
		if v.graphConfig, err = json.Marshal(g.GraphConfig); err != nil {
			return v, fmt.Errorf("encode graph config: %w", err)
		}
	}
	return v, nil
}

func refsJSON(refs []model.RequirementRef) ([]byte, error) {
	if len(refs) == 0 {
		return []byte("[]"), nil
	}
	b, err := json.Marshal(refs)
	if err != nil {
		return nil, fmt.Errorf("encode refs: %w", err)
	}
	return b, nil
}

// decodeRefs decodes a JSONB ref list; an empty list decodes as nil.
func decodeRefs(data []byte) ([]model.RequirementRef, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var refs []model.RequirementRef
	if err := json.Unmarshal(data, &refs); err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, nil
	}
	return refs, nil
}

// scanGraph scans a single row into a model.DependencyGraph.
// The row must contain columns in the order defined by graphColumns.
func scanGraph(row scannable) (*model.DependencyGraph, error) {
	var g model.DependencyGraph
	var (
		prerequisites []byte
		dependents    []byte
		related       []byte
		duplicates    []byte
		subtasks      []byte
		parent        []byte
		statistics    []byte
		graphConfig   []byte
	)

	err := row.Scan(
		&g.RequirementID,
		&prerequisites,
		&dependents,
		&related,
		&duplicates,
		&subtasks,
		&parent,
		&statistics,
		&graphConfig,
		&g.Version,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, f := range []struct {
		name string
		data []byte
		dst  *[]model.RequirementRef
	}{
		{"prerequisites", prerequisites, &g.Prerequisites},
		{"dependents", dependents, &g.Dependents},
		{"related", related, &g.Related},
		{"duplicates", duplicates, &g.Duplicates},
		{"subtasks", subtasks, &g.Subtasks},
	} {
		if *f.dst, err = decodeRefs(f.data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.name, err)
		}
	}
	if len(parent) > 0 {
		var p model.RequirementRef
		if err := json.Unmarshal(parent, &p); err != nil {
			return nil, fmt.Errorf("decode parent: %w", err)
		}
		g.Parent = &p
	}
	if len(statistics) > 0 {
		if err := json.Unmarshal(statistics, &g.Statistics); err != nil {
			return nil, fmt.Errorf("decode statistics: %w", err)
		}
	}
	if g.Statistics.CriticalPath == nil {
		g.Statistics.CriticalPath = []string{}
	}
	if len(graphConfig) > 0 {
		var cfg model.GraphConfig
		if err := json.Unmarshal(graphConfig, &cfg); err != nil {
			return nil, fmt.Errorf("decode graph config: %w", err)
		}
		g.GraphConfig = &cfg
	}
	return &g, nil
}

// scanGraphs scans all rows into a slice of DependencyGraphs and closes rows.
func scanGraphs(rows *sql.Rows) ([]*model.DependencyGraph, error) {
	defer rows.Close()
	var graphs []*model.DependencyGraph
	for rows.Next() {
		g, err := scanGraph(rows)
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return graphs, nil
}

// historyColumnValues holds the encoded JSONB columns of a history row.
type historyColumnValues struct {
	oldValues       []byte
	newValues       []byte
	changedFields   []byte
	extraData       []byte
	tags            []byte
	relatedEntities []byte
}

func historyValues(e *model.HistoryEvent) (historyColumnValues, error) {
	var (
		v   historyColumnValues
		err error
	)
	if v.oldValues, err = jsonbOrNull(len(e.OldValues) > 0, e.OldValues); err != nil {
		return v, err
	}
	if v.newValues, err = jsonbOrNull(len(e.NewValues) > 0, e.NewValues); err != nil {
		return v, err
	}
	if v.changedFields, err = jsonbOrNull(len(e.ChangedFields) > 0, e.ChangedFields); err != nil {
		return v, err
	}
	if v.extraData, err = jsonbOrNull(len(e.ExtraData) > 0, e.ExtraData); err != nil {
		return v, err
	}
	if v.tags, err = jsonbOrNull(len(e.Tags) > 0, e.Tags); err != nil {
		return v, err
	}
	if v.relatedEntities, err = jsonbOrNull(len(e.RelatedEntities) > 0, e.RelatedEntities); err != nil {
		return v, err
	}
	return v, nil
}

// jsonbOrNull encodes v for a nullable JSONB column, or returns nil when
// present is false.
func jsonbOrNull(present bool, v any) ([]byte, error) {
	if !present {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode jsonb: %w", err)
	}
	return b, nil
}

// scanHistoryEvent scans a single row into a model.HistoryEvent.
// The row must contain columns in the order defined by historyColumns.
func scanHistoryEvent(row scannable) (*model.HistoryEvent, error) {
	var e model.HistoryEvent
	var (
		oldValues       []byte
		newValues       []byte
		changedFields   []byte
		errorMessage    sql.NullString
		source          sql.NullString
		userAgent       sql.NullString
		ipAddress       sql.NullString
		sessionID       sql.NullString
		requestID       sql.NullString
		durationMS      sql.NullInt64
		extraData       []byte
		tags            []byte
		relatedEntities []byte
	)

	err := row.Scan(
		&e.ID,
		&e.RequirementID,
		&e.OperatorID,
		&e.Action,
		&e.Description,
		&oldValues,
		&newValues,
		&changedFields,
		&e.IsSystemAction,
		&e.Result,
		&errorMessage,
		&source,
		&userAgent,
		&ipAddress,
		&sessionID,
		&requestID,
		&durationMS,
		&extraData,
		&tags,
		&relatedEntities,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.ErrorMessage = errorMessage.String
	e.Source = source.String
	e.UserAgent = userAgent.String
	e.IPAddress = ipAddress.String
	e.SessionID = sessionID.String
	e.RequestID = requestID.String
	if durationMS.Valid {
		d := durationMS.Int64
		e.DurationMS = &d
	}

	for _, f := range []struct {
		name string
		data []byte
		dst  any
	}{
		{"old_values", oldValues, &e.OldValues},
		{"new_values", newValues, &e.NewValues},
		{"changed_fields", changedFields, &e.ChangedFields},
		{"extra_data", extraData, &e.ExtraData},
		{"tags", tags, &e.Tags},
		{"related_entities", relatedEntities, &e.RelatedEntities},
	} {
		if len(f.data) == 0 {
			continue
		}
		if err := json.Unmarshal(f.data, f.dst); err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.name, err)
		}
	}
	return &e, nil
}

// scanHistoryEvents scans all rows into a slice of HistoryEvents and closes rows.
func scanHistoryEvents(rows *sql.Rows) ([]*model.HistoryEvent, error) {
	defer rows.Close()
	events := []*model.HistoryEvent{}
	for rows.Next() {
		e, err := scanHistoryEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullInt64Ptr converts an *int64 to a sql.NullInt64.
func nullInt64Ptr(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}
