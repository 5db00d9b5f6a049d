package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/alfredjeanlab/reqgraph/internal/model"
)

// Snapshot is a decoded export.
type Snapshot struct {
	Header  Header
	Graphs  []*model.DependencyGraph
	History []*model.HistoryEvent
}

// ReadJSONL decodes an export written by ExportJSONL, checks that the
// record counts match the header, and runs Verify on the result.
func ReadJSONL(r io.Reader) (*Snapshot, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		snap       Snapshot
		sawHeader  bool
		lineNumber int
	)
	for sc.Scan() {
		lineNumber++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNumber, err)
		}

		switch raw.Type {
		case TypeHeader:
			if sawHeader {
				return nil, fmt.Errorf("line %d: duplicate header", lineNumber)
			}
			if err := json.Unmarshal(line, &snap.Header); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNumber, err)
			}
			if snap.Header.Version != FormatVersion {
				return nil, fmt.Errorf("unsupported export version %q", snap.Header.Version)
			}
			sawHeader = true
		case TypeGraph:
			var g model.DependencyGraph
			if err := json.Unmarshal(raw.Data, &g); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNumber, err)
			}
			snap.Graphs = append(snap.Graphs, &g)
		case TypeHistory:
			var e model.HistoryEvent
			if err := json.Unmarshal(raw.Data, &e); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNumber, err)
			}
			snap.History = append(snap.History, &e)
		default:
			return nil, fmt.Errorf("line %d: unknown record type %q", lineNumber, raw.Type)
		}

		if !sawHeader {
			return nil, fmt.Errorf("line %d: record before header", lineNumber)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	if !sawHeader {
		return nil, fmt.Errorf("export has no header")
	}
	if len(snap.Graphs) != snap.Header.GraphCount {
		return nil, fmt.Errorf("header declares %d graphs, found %d", snap.Header.GraphCount, len(snap.Graphs))
	}
	if len(snap.History) != snap.Header.HistoryCount {
		return nil, fmt.Errorf("header declares %d history events, found %d", snap.Header.HistoryCount, len(snap.History))
	}
	if err := snap.Verify(); err != nil {
		return nil, fmt.Errorf("verify export: %w", err)
	}
	return &snap, nil
}
