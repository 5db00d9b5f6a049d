package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/reqgraph/internal/history"
	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/alfredjeanlab/reqgraph/internal/store"
)

// graphColumns is the column list used for SELECT statements on the
// dependency_graphs table.
const graphColumns = `requirement_id, prerequisites, dependents, related,
	duplicates, subtasks, parent, statistics, graph_config, version,
	created_at, updated_at`

// historyColumns is the column list used for SELECT statements on the
// requirement_histories table.
const historyColumns = `id, requirement_id, operator_id, action, description,
	old_values, new_values, changed_fields, is_system_action, result,
	error_message, source, user_agent, ip_address, session_id, request_id,
	duration_ms, extra_data, tags, related_entities, created_at`

// SQLSTATE codes handled by this package.
const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// rowLock is appended to graph SELECTs. Transactions read with forShare so
// that records a cycle check walked cannot be rewritten underneath it.
type rowLock string

const (
	noLock   rowLock = ""
	forShare rowLock = " FOR SHARE"
)

// conflict maps lock and serialization failures to
// store.ErrConcurrentModification and returns other errors unchanged.
func conflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case serializationFailure, deadlockDetected:
			return fmt.Errorf("%w: %s", store.ErrConcurrentModification, pqErr.Message)
		}
	}
	return err
}

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateGraph(ctx context.Context, db executor, g *model.DependencyGraph) error {
	cols, err := graphValues(g)
	if err != nil {
		return fmt.Errorf("create graph %s: %w", g.RequirementID, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO dependency_graphs (
			requirement_id, prerequisites, dependents, related,
			duplicates, subtasks, parent, statistics, graph_config, version,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		g.RequirementID,
		cols.prerequisites,
		cols.dependents,
		cols.related,
		cols.duplicates,
		cols.subtasks,
		cols.parent,
		cols.statistics,
		cols.graphConfig,
		g.Version,
		g.CreatedAt,
		g.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("create graph %s: %w", g.RequirementID, store.ErrAlreadyExists)
		}
		return fmt.Errorf("create graph %s: %w", g.RequirementID, err)
	}
	return nil
}

func queryLoadGraph(ctx context.Context, db executor, requirementID string, lock rowLock) (*model.DependencyGraph, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+graphColumns+` FROM dependency_graphs WHERE requirement_id = $1`+string(lock), requirementID)
	g, err := scanGraph(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load graph %s: %w", requirementID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load graph %s: %w", requirementID, conflict(err))
	}
	return g, nil
}

func queryLoadGraphs(ctx context.Context, db executor, requirementIDs []string, lock rowLock) (map[string]*model.DependencyGraph, error) {
	out := make(map[string]*model.DependencyGraph, len(requirementIDs))
	if len(requirementIDs) == 0 {
		return out, nil
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+graphColumns+` FROM dependency_graphs WHERE requirement_id = ANY($1)`+string(lock),
		pq.Array(requirementIDs))
	if err != nil {
		return nil, fmt.Errorf("load graphs: %w", conflict(err))
	}
	graphs, err := scanGraphs(rows)
	if err != nil {
		return nil, fmt.Errorf("load graphs: %w", err)
	}
	for _, g := range graphs {
		out[g.RequirementID] = g
	}
	return out, nil
}

func queryListGraphs(ctx context.Context, db executor) ([]*model.DependencyGraph, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+graphColumns+` FROM dependency_graphs ORDER BY requirement_id`)
	if err != nil {
		return nil, fmt.Errorf("list graphs: %w", err)
	}
	graphs, err := scanGraphs(rows)
	if err != nil {
		return nil, fmt.Errorf("list graphs: %w", err)
	}
	return graphs, nil
}

// querySaveGraph writes g guarded by its version. The UPDATE matches no row
// when another writer has bumped the version since g was loaded.
func querySaveGraph(ctx context.Context, db executor, g *model.DependencyGraph) error {
	cols, err := graphValues(g)
	if err != nil {
		return fmt.Errorf("save graph %s: %w", g.RequirementID, err)
	}
	res, err := db.ExecContext(ctx, `
		UPDATE dependency_graphs SET
			prerequisites = $3, dependents = $4, related = $5, duplicates = $6,
			subtasks = $7, parent = $8, statistics = $9, graph_config = $10,
			updated_at = $11, version = version + 1
		WHERE requirement_id = $1 AND version = $2`,
		g.RequirementID,
		g.Version,
		cols.prerequisites,
		cols.dependents,
		cols.related,
		cols.duplicates,
		cols.subtasks,
		cols.parent,
		cols.statistics,
		cols.graphConfig,
		g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save graph %s: %w", g.RequirementID, conflict(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save graph %s: %w", g.RequirementID, err)
	}
	if n == 0 {
		var exists bool
		if err := db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM dependency_graphs WHERE requirement_id = $1)`,
			g.RequirementID).Scan(&exists); err != nil {
			return fmt.Errorf("save graph %s: %w", g.RequirementID, err)
		}
		if !exists {
			return fmt.Errorf("save graph %s: %w", g.RequirementID, store.ErrNotFound)
		}
		return fmt.Errorf("save graph %s: version %d: %w", g.RequirementID, g.Version, store.ErrConcurrentModification)
	}
	g.Version++
	return nil
}

// queryAppendHistory inserts one ledger row. The table has no UPDATE or
// DELETE path in this package and a trigger rejects both.
func queryAppendHistory(ctx context.Context, db executor, e *model.HistoryEvent) error {
	if err := history.Check(e); err != nil {
		return err
	}
	cols, err := historyValues(e)
	if err != nil {
		return fmt.Errorf("append history %s: %w", e.ID, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO requirement_histories (
			id, requirement_id, operator_id, action, description,
			old_values, new_values, changed_fields, is_system_action, result,
			error_message, source, user_agent, ip_address, session_id, request_id,
			duration_ms, extra_data, tags, related_entities, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21
		)`,
		e.ID,
		e.RequirementID,
		e.OperatorID,
		string(e.Action),
		e.Description,
		cols.oldValues,
		cols.newValues,
		cols.changedFields,
		e.IsSystemAction,
		string(resultOrSuccess(e.Result)),
		nullString(e.ErrorMessage),
		nullString(e.Source),
		nullString(e.UserAgent),
		nullString(e.IPAddress),
		nullString(e.SessionID),
		nullString(e.RequestID),
		nullInt64Ptr(e.DurationMS),
		cols.extraData,
		cols.tags,
		cols.relatedEntities,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append history %s: %w", e.ID, err)
	}
	return nil
}

func resultOrSuccess(r model.HistoryResult) model.HistoryResult {
	if r == "" {
		return model.ResultSuccess
	}
	return r
}

func queryHistory(ctx context.Context, db executor, requirementID string, filter model.HistoryFilter) ([]*model.HistoryEvent, error) {
	q, args := buildHistoryQuery(requirementID, filter)
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query history %s: %w", requirementID, err)
	}
	events, err := scanHistoryEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("query history %s: %w", requirementID, err)
	}
	return events, nil
}

// buildHistoryQuery renders the SELECT for queryHistory with positional args.
func buildHistoryQuery(requirementID string, filter model.HistoryFilter) (string, []any) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	whereClauses = append(whereClauses, "requirement_id = "+nextArg())
	args = append(args, requirementID)

	if len(filter.Actions) > 0 {
		placeholders := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			placeholders[i] = nextArg()
			args = append(args, string(a))
		}
		whereClauses = append(whereClauses, "action IN ("+strings.Join(placeholders, ", ")+")")
	}

	if filter.OperatorID != "" {
		whereClauses = append(whereClauses, "operator_id = "+nextArg())
		args = append(args, filter.OperatorID)
	}

	if filter.Since != nil {
		whereClauses = append(whereClauses, "created_at >= "+nextArg())
		args = append(args, *filter.Since)
	}

	if filter.Until != nil {
		whereClauses = append(whereClauses, "created_at < "+nextArg())
		args = append(args, *filter.Until)
	}

	order := "created_at DESC, seq DESC"
	if filter.Ascending {
		order = "created_at ASC, seq ASC"
	}

	q := `SELECT ` + historyColumns + ` FROM requirement_histories WHERE ` +
		strings.Join(whereClauses, " AND ") + ` ORDER BY ` + order

	if filter.Limit > 0 {
		q += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	return q, args
}
