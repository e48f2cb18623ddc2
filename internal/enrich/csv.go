package enrich

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const jobCluesColumn = "pms_clues_jobs"

// ProcessFile reads an audit results CSV, enriches each row from job
// postings, and writes the input columns plus a pms_clues_jobs column.
// Rows whose search fails keep their original values. Returns how many
// rows had their PMS guess upgraded.
func (e *Enricher) ProcessFile(ctx context.Context, inPath, outPath string) (int, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return 0, fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	writer := csv.NewWriter(out)
	defer writer.Flush()

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[col] = i
	}
	nameIdx, ok := idx["name"]
	if !ok {
		return 0, errors.New("input is missing a name column")
	}
	pmsIdx, hasPMS := idx["likely_pms"]
	confIdx, hasConf := idx["pms_confidence"]

	if err := writer.Write(append(append([]string{}, header...), jobCluesColumn)); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	upgraded := 0
	rowNum := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return upgraded, fmt.Errorf("read row %d: %w", rowNum, err)
		}
		rowNum++

		priorPMS := ""
		priorConf := 0.0
		if hasPMS && pmsIdx < len(record) {
			priorPMS = record[pmsIdx]
		}
		if hasConf && confIdx < len(record) {
			priorConf, _ = strconv.ParseFloat(record[confIdx], 64)
		}

		finding, err := e.EnrichPractice(ctx, record[nameIdx], priorPMS, priorConf)
		if err != nil {
			if ctx.Err() != nil {
				return upgraded, err
			}
			e.logger.Warn("enrichment search failed",
				zap.String("name", record[nameIdx]), zap.Error(err))
		}

		if finding.Upgraded {
			upgraded++
			if hasPMS && pmsIdx < len(record) {
				record[pmsIdx] = finding.LikelyPMS
			}
			if hasConf && confIdx < len(record) {
				record[confIdx] = strconv.FormatFloat(finding.Confidence, 'g', -1, 64)
			}
		}

		record = append(record, strings.Join(finding.JobClues, ";"))
		if err := writer.Write(record); err != nil {
			return upgraded, fmt.Errorf("write row %d: %w", rowNum, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return upgraded, fmt.Errorf("flush output: %w", err)
	}
	return upgraded, nil
}
