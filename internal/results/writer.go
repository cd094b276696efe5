package results

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// WriteCSV writes the legacy projection with a header row.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(t.Rows()); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

type jsonRecord struct {
	Status     Status `json:"status"`
	Competitor string `json:"competitor"`
	Record     Record `json:"record"`
}

// WriteJSONL writes one discriminated record per line.
func WriteJSONL(w io.Writer, t *Table) error {
	enc := json.NewEncoder(w)
	for _, r := range t.Records {
		if err := enc.Encode(jsonRecord{Status: r.Status(), Competitor: t.Competitor, Record: r}); err != nil {
			return fmt.Errorf("encode record %s: %w", r.SKU(), err)
		}
	}
	return nil
}

// DirPublisher writes each table to <Dir>/<run id>/<competitor>.csv and .jsonl.
type DirPublisher struct {
	Dir string
}

// NewDirPublisher creates a publisher rooted at dir.
func NewDirPublisher(dir string) *DirPublisher {
	return &DirPublisher{Dir: dir}
}

// Name identifies the publisher in logs.
func (p *DirPublisher) Name() string { return "dir" }

// Publish writes both file formats for the table.
func (p *DirPublisher) Publish(ctx context.Context, runID string, t *Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	runDir := filepath.Join(p.Dir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	base := strings.ToLower(t.Competitor)
	if err := writeFile(filepath.Join(runDir, base+".csv"), t, WriteCSV); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(runDir, base+".jsonl"), t, WriteJSONL); err != nil {
		return err
	}

	log.Info().
		Str("competitor", t.Competitor).
		Str("dir", runDir).
		Int("rows", len(t.Records)).
		Msg("Results written")
	return nil
}

func writeFile(path string, t *Table, write func(io.Writer, *Table) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	if err := write(f, t); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
