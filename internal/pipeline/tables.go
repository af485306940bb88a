package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/clinsight/ade-signal-pipeline/internal/mention"
)

// Column layouts of the input and output tables. Column names are the
// contract with the surrounding extraction and reporting tooling; the
// physical format is plain CSV with a header row.
var (
	mentionColumns = []string{"drug_text", "ade_text", "source_id"}

	normalizedColumns = append(mentionColumns,
		"drug_normalized", "ade_normalized",
		"drug_matched", "drug_matched_original",
		"ade_matched", "ade_matched_original",
		"drug_match_score", "ade_match_score",
	)

	validatedColumns = append(normalizedColumns,
		"is_consistent", "reference_match_found",
	)

	decisionColumns = append(validatedColumns,
		"kept", "filter_reason",
	)

	summaryColumns = []string{"drug", "mentions", "consistent", "kept"}
)

// ReadMentions parses the raw mention table. The header row is required and
// columns are located by name so extra columns from the extraction stage are
// tolerated.
func ReadMentions(r io.Reader) ([]mention.Mention, error) {
	records, idx, err := readTable(r, mentionColumns)
	if err != nil {
		return nil, err
	}
	mentions := make([]mention.Mention, 0, len(records))
	for _, rec := range records {
		mentions = append(mentions, mention.Mention{
			DrugText: rec[idx["drug_text"]],
			ADEText:  rec[idx["ade_text"]],
			SourceID: rec[idx["source_id"]],
		})
	}
	return mentions, nil
}

// WriteMentions writes the raw mention table with its header row.
func WriteMentions(w io.Writer, mentions []mention.Mention) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(mentionColumns); err != nil {
		return err
	}
	for _, m := range mentions {
		if err := cw.Write([]string{m.DrugText, m.ADEText, m.SourceID}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteNormalized writes the normalised/matched mention table.
func WriteNormalized(w io.Writer, mentions []mention.Normalized) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(normalizedColumns); err != nil {
		return err
	}
	for _, m := range mentions {
		if err := cw.Write(normalizedRecord(m)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteValidated writes the validated mention table.
func WriteValidated(w io.Writer, mentions []mention.Validated) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(validatedColumns); err != nil {
		return err
	}
	for _, m := range mentions {
		if err := cw.Write(validatedRecord(m)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDecisions writes the filtered decision table.
func WriteDecisions(w io.Writer, decisions []mention.Decision) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(decisionColumns); err != nil {
		return err
	}
	for _, d := range decisions {
		rec := append(validatedRecord(d.Validated),
			strconv.FormatBool(d.Kept),
			d.Reason,
		)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadDecisions parses a previously written decision table, preserving the
// kept flag and reason code exactly.
func ReadDecisions(r io.Reader) ([]mention.Decision, error) {
	records, idx, err := readTable(r, decisionColumns)
	if err != nil {
		return nil, err
	}
	decisions := make([]mention.Decision, 0, len(records))
	for i, rec := range records {
		get := func(col string) string { return rec[idx[col]] }

		drugScore, err := strconv.Atoi(get("drug_match_score"))
		if err != nil {
			return nil, fmt.Errorf("row %d: bad drug_match_score: %w", i+1, err)
		}
		adeScore, err := strconv.Atoi(get("ade_match_score"))
		if err != nil {
			return nil, fmt.Errorf("row %d: bad ade_match_score: %w", i+1, err)
		}
		consistent, err := strconv.ParseBool(get("is_consistent"))
		if err != nil {
			return nil, fmt.Errorf("row %d: bad is_consistent: %w", i+1, err)
		}
		refFound, err := strconv.ParseBool(get("reference_match_found"))
		if err != nil {
			return nil, fmt.Errorf("row %d: bad reference_match_found: %w", i+1, err)
		}
		kept, err := strconv.ParseBool(get("kept"))
		if err != nil {
			return nil, fmt.Errorf("row %d: bad kept: %w", i+1, err)
		}

		decisions = append(decisions, mention.Decision{
			Validated: mention.Validated{
				Normalized: mention.Normalized{
					Mention: mention.Mention{
						DrugText: get("drug_text"),
						ADEText:  get("ade_text"),
						SourceID: get("source_id"),
					},
					DrugNormalized:      get("drug_normalized"),
					ADENormalized:       get("ade_normalized"),
					DrugMatched:         get("drug_matched"),
					DrugMatchedOriginal: get("drug_matched_original"),
					ADEMatched:          get("ade_matched"),
					ADEMatchedOriginal:  get("ade_matched_original"),
					DrugMatchScore:      drugScore,
					ADEMatchScore:       adeScore,
				},
				IsConsistent:        consistent,
				ReferenceMatchFound: refFound,
			},
			Kept:   kept,
			Reason: get("filter_reason"),
		})
	}
	return decisions, nil
}

// WriteSummary writes the per-drug summary table.
func WriteSummary(w io.Writer, rows []DrugSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryColumns); err != nil {
		return err
	}
	for _, row := range rows {
		rec := []string{
			row.Drug,
			strconv.Itoa(row.Mentions),
			strconv.Itoa(row.Consistent),
			strconv.Itoa(row.Kept),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func normalizedRecord(m mention.Normalized) []string {
	return []string{
		m.DrugText, m.ADEText, m.SourceID,
		m.DrugNormalized, m.ADENormalized,
		m.DrugMatched, m.DrugMatchedOriginal,
		m.ADEMatched, m.ADEMatchedOriginal,
		strconv.Itoa(m.DrugMatchScore), strconv.Itoa(m.ADEMatchScore),
	}
}

func validatedRecord(m mention.Validated) []string {
	return append(normalizedRecord(m.Normalized),
		strconv.FormatBool(m.IsConsistent),
		strconv.FormatBool(m.ReferenceMatchFound),
	)
}

// readTable reads a headered CSV and returns the data records plus a
// column-name index. Missing required columns are an error; extra columns
// are ignored.
func readTable(r io.Reader, required []string) ([][]string, map[string]int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("empty table: missing header row")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, nil, fmt.Errorf("missing required column %q", col)
		}
	}

	var records [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading row: %w", err)
		}
		if len(rec) < len(header) {
			continue
		}
		records = append(records, rec)
	}
	return records, idx, nil
}
