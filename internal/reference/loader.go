// Package reference builds the pharmacovigilance reference structures used
// by the evidence pipeline: drug and side-effect vocabularies, the canonical
// set of (drug, side effect) associations, and per-pair frequency data.
//
// Sources are tab-delimited tables in the SIDER layout. Loading degrades
// gracefully: malformed rows are skipped with a warning and a missing file
// yields an empty structure, because downstream stages treat "no match" as a
// valid outcome rather than an error.
package reference

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"strings"
)

// DrugRow is one row of the drug-name table. Only the first two columns are
// load-bearing: a compound identifier and the drug's surface name.
type DrugRow struct {
	CompoundID string
	Name       string
}

// EffectRow is one row of the side-effect table (six-column minimum; extra
// columns are ignored).
type EffectRow struct {
	CompoundFlat   string
	CompoundStereo string
	ConceptLabel   string
	TermType       string
	ConceptID      string
	Name           string
}

// ATCRow maps a compound identifier to an ATC code, used as an optional
// secondary join key between the drug and side-effect tables.
type ATCRow struct {
	CompoundID string
	ATCCode    string
}

// LoadDrugTable reads a tab-delimited drug-name table. A missing file is not
// an error: it returns an empty slice so the caller builds an empty
// vocabulary in which nothing ever matches.
func LoadDrugTable(path string) ([]DrugRow, error) {
	logger := slog.Default().With("component", "reference-loader", "table", "drugs")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("reference table missing, continuing with empty vocabulary", "path", path)
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return ReadDrugTable(f, logger)
}

// ReadDrugTable parses drug rows from r, skipping malformed rows with a
// warning.
func ReadDrugTable(r io.Reader, logger *slog.Logger) ([]DrugRow, error) {
	var rows []DrugRow
	skipped := 0
	err := scanTSV(r, func(lineNo int, fields []string) {
		if len(fields) < 2 {
			skipped++
			logger.Warn("skipping malformed drug row", "line", lineNo, "columns", len(fields))
			return
		}
		rows = append(rows, DrugRow{
			CompoundID: strings.TrimSpace(fields[0]),
			Name:       strings.TrimSpace(fields[1]),
		})
	})
	if err != nil {
		return rows, err
	}
	if skipped > 0 {
		logger.Warn("drug table loaded with skipped rows", "loaded", len(rows), "skipped", skipped)
	}
	return rows, nil
}

// LoadEffectTable reads a tab-delimited side-effect table. A missing file
// returns an empty slice, not an error.
func LoadEffectTable(path string) ([]EffectRow, error) {
	logger := slog.Default().With("component", "reference-loader", "table", "side_effects")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("reference table missing, continuing with empty vocabulary", "path", path)
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return ReadEffectTable(f, logger)
}

// ReadEffectTable parses side-effect rows from r. Rows with fewer than six
// columns are skipped with a warning; columns beyond the sixth are ignored.
func ReadEffectTable(r io.Reader, logger *slog.Logger) ([]EffectRow, error) {
	var rows []EffectRow
	skipped := 0
	err := scanTSV(r, func(lineNo int, fields []string) {
		if len(fields) < 6 {
			skipped++
			logger.Warn("skipping malformed side-effect row", "line", lineNo, "columns", len(fields))
			return
		}
		rows = append(rows, EffectRow{
			CompoundFlat:   strings.TrimSpace(fields[0]),
			CompoundStereo: strings.TrimSpace(fields[1]),
			ConceptLabel:   strings.TrimSpace(fields[2]),
			TermType:       strings.TrimSpace(fields[3]),
			ConceptID:      strings.TrimSpace(fields[4]),
			Name:           strings.TrimSpace(fields[5]),
		})
	})
	if err != nil {
		return rows, err
	}
	if skipped > 0 {
		logger.Warn("side-effect table loaded with skipped rows", "loaded", len(rows), "skipped", skipped)
	}
	return rows, nil
}

// LoadATCMap reads the optional compound-to-ATC mapping table. A missing
// file returns an empty slice, not an error.
func LoadATCMap(path string) ([]ATCRow, error) {
	logger := slog.Default().With("component", "reference-loader", "table", "atc_map")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("ATC mapping missing, joining on compound identifier only", "path", path)
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return ReadATCMap(f, logger)
}

// ReadATCMap parses ATC mapping rows from r.
func ReadATCMap(r io.Reader, logger *slog.Logger) ([]ATCRow, error) {
	var rows []ATCRow
	skipped := 0
	err := scanTSV(r, func(lineNo int, fields []string) {
		if len(fields) < 2 {
			skipped++
			logger.Warn("skipping malformed ATC row", "line", lineNo, "columns", len(fields))
			return
		}
		rows = append(rows, ATCRow{
			CompoundID: strings.TrimSpace(fields[0]),
			ATCCode:    strings.TrimSpace(fields[1]),
		})
	})
	if err != nil {
		return rows, err
	}
	if skipped > 0 {
		logger.Warn("ATC map loaded with skipped rows", "loaded", len(rows), "skipped", skipped)
	}
	return rows, nil
}

// scanTSV iterates the tab-separated lines of r, calling fn with a 1-based
// line number and the split fields. Blank lines are skipped. SIDER exports
// are plain tab-separated text without quoting, so a field split is
// sufficient and tolerant of embedded quote characters in term names.
func scanTSV(r io.Reader, fn func(lineNo int, fields []string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fn(lineNo, strings.Split(line, "\t"))
	}
	return scanner.Err()
}
