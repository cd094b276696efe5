package catalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// CSVLoader reads the private-label catalogue export: a header row with
// productcode_match and one URL column per competitor.
type CSVLoader struct {
	Path string
}

// NewCSVLoader creates a loader for the export at path.
func NewCSVLoader(path string) *CSVLoader {
	return &CSVLoader{Path: path}
}

// Load reads the export and returns the cleaned entries for competitor.
func (l *CSVLoader) Load(ctx context.Context, competitor string) ([]MatchEntry, error) {
	snapshot, err := l.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Entries(competitor)
}

// Snapshot reads every competitor column of the export in one pass.
func (l *CSVLoader) Snapshot(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("open catalogue: %w", err)
	}
	defer f.Close()

	snapshot, err := ParseSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("read catalogue %s: %w", l.Path, err)
	}

	log.Info().
		Str("path", l.Path).
		Strs("competitors", snapshot.Competitors()).
		Int("cells", snapshot.Rows()).
		Msg("Catalogue loaded")

	return snapshot, nil
}

// ParseCSV reads a catalogue export from r and returns the cleaned entries for
// one competitor.
func ParseCSV(r io.Reader, competitor string) ([]MatchEntry, error) {
	snapshot, err := ParseSnapshot(r)
	if err != nil {
		return nil, err
	}
	return snapshot.Entries(competitor)
}

// ParseSnapshot reads a catalogue export from r. Every column other than
// productcode_match is a competitor column. Column names match
// case-insensitively and both comma and semicolon separated exports are accepted.
func ParseSnapshot(r io.Reader) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("catalogue is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	skuIdx := -1
	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = competitorKey(name)
		if columns[i] == SKUColumn {
			skuIdx = i
		}
	}
	if skuIdx < 0 {
		return nil, fmt.Errorf("column %q not found", SKUColumn)
	}

	snapshot := NewSnapshot()
	for i, name := range columns {
		if i != skuIdx && name != "" {
			snapshot.AddCompetitor(name)
		}
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if skuIdx >= len(record) {
			continue
		}
		for i, cell := range record {
			if i >= len(columns) || i == skuIdx || columns[i] == "" {
				continue
			}
			snapshot.Add(columns[i], MatchEntry{OurSKU: record[skuIdx], CompetitorURL: cell})
		}
	}

	return snapshot, nil
}

func detectDelimiter(data []byte) rune {
	firstLine := string(data)
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}
	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		return ';'
	}
	return ','
}
