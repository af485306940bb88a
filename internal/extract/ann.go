// Package extract parses brat standoff annotation (.ann) files into the
// flat mention table the pipeline consumes. Entity lines ("T...") carry a
// label, character offsets, and the annotated text; relation lines ("R...")
// link two entities by ID. Only Drug/ADE entities and ADE-Drug relations
// are of interest; everything else is passed over, and malformed lines are
// skipped with a warning rather than failing the file.
package extract

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/clinsight/ade-signal-pipeline/internal/mention"
)

const (
	labelDrug = "Drug"
	labelADE  = "ADE"

	relationADEDrug = "ADE-Drug"
)

// Entity is one annotated text span.
type Entity struct {
	ID       string
	Label    string
	Text     string
	SourceID string
}

// Relation links two entities within one document. For ADE-Drug relations
// Arg1 names the ADE entity and Arg2 the drug entity.
type Relation struct {
	ID       string
	Type     string
	Arg1     string
	Arg2     string
	SourceID string
}

// ParseAnn reads one .ann document. Entity and relation IDs are prefixed
// with sourceID so they stay unique when documents are combined.
func ParseAnn(r io.Reader, sourceID string) ([]Entity, []Relation, error) {
	logger := slog.Default().With("component", "extract", "source", sourceID)

	var entities []Entity
	var relations []Relation

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "T"):
			entity, ok := parseEntityLine(line, sourceID)
			if !ok {
				logger.Warn("skipping malformed entity line", "line", line)
				continue
			}
			entities = append(entities, entity)
		case strings.HasPrefix(line, "R"):
			relation, ok := parseRelationLine(line, sourceID)
			if !ok {
				logger.Warn("skipping malformed relation line", "line", line)
				continue
			}
			relations = append(relations, relation)
		}
	}
	return entities, relations, scanner.Err()
}

// parseEntityLine parses "T1<TAB>ADE 442 448<TAB>nausea". Discontinuous
// spans ("442 448;450 455") are accepted; only the label and text matter
// downstream.
func parseEntityLine(line, sourceID string) (Entity, bool) {
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) < 3 {
		return Entity{}, false
	}
	labelFields := strings.Fields(parts[1])
	if len(labelFields) < 3 {
		return Entity{}, false
	}
	return Entity{
		ID:       sourceID + "_" + parts[0],
		Label:    labelFields[0],
		Text:     strings.TrimSpace(parts[2]),
		SourceID: sourceID,
	}, true
}

// parseRelationLine parses "R1<TAB>ADE-Drug Arg1:T2 Arg2:T5".
func parseRelationLine(line, sourceID string) (Relation, bool) {
	parts := strings.SplitN(line, "\t", 2)
	if len(parts) < 2 {
		return Relation{}, false
	}
	fields := strings.Fields(parts[1])
	if len(fields) < 3 {
		return Relation{}, false
	}
	arg1, ok1 := strings.CutPrefix(fields[1], "Arg1:")
	arg2, ok2 := strings.CutPrefix(fields[2], "Arg2:")
	if !ok1 || !ok2 {
		return Relation{}, false
	}
	return Relation{
		ID:       sourceID + "_" + parts[0],
		Type:     fields[0],
		Arg1:     sourceID + "_" + arg1,
		Arg2:     sourceID + "_" + arg2,
		SourceID: sourceID,
	}, true
}

// Mentions joins ADE-Drug relations against their entities and returns the
// flat mention table. Relations pointing at unknown or mislabelled entities
// are dropped.
func Mentions(entities []Entity, relations []Relation) []mention.Mention {
	byID := make(map[string]Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}

	var mentions []mention.Mention
	for _, rel := range relations {
		if rel.Type != relationADEDrug {
			continue
		}
		ade, okADE := byID[rel.Arg1]
		drug, okDrug := byID[rel.Arg2]
		if !okADE || !okDrug {
			continue
		}
		if ade.Label != labelADE || drug.Label != labelDrug {
			continue
		}
		mentions = append(mentions, mention.Mention{
			DrugText: drug.Text,
			ADEText:  ade.Text,
			SourceID: rel.SourceID,
		})
	}
	return mentions
}

// ExtractDir parses every .ann file under dir and returns the combined
// mention table. Unreadable files are skipped with a warning so one corrupt
// document does not sink the batch.
func ExtractDir(dir string) ([]mention.Mention, error) {
	logger := slog.Default().With("component", "extract")

	paths, err := filepath.Glob(filepath.Join(dir, "*.ann"))
	if err != nil {
		return nil, err
	}
	logger.Info("extracting annotation files", "dir", dir, "files", len(paths))

	var all []mention.Mention
	for _, path := range paths {
		sourceID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		f, err := os.Open(path)
		if err != nil {
			logger.Warn("skipping unreadable annotation file", "path", path, "error", err)
			continue
		}
		entities, relations, err := ParseAnn(f, sourceID)
		f.Close()
		if err != nil {
			logger.Warn("skipping annotation file after read error", "path", path, "error", err)
			continue
		}
		all = append(all, Mentions(entities, relations)...)
	}
	logger.Info("extraction complete", "mentions", len(all))
	return all, nil
}
