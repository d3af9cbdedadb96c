package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/timmy/dropsync/internal/domain"
)

// reportDateLayout is the date format used in drop report files.
const reportDateLayout = "2006-01-02"

// ParsedRow is one data row read from a report file, before it is bound
// to an ingestion-log entry.
type ParsedRow struct {
	ReportDate time.Time
	Metric     string
	Value      float64
	Extra      domain.FieldMap
}

// ParseReportFile reads a CSV report file into rows. The file must have
// a header naming at least the date, metric and value columns; any
// additional columns are carried along as extra fields. A header-only
// file parses to zero rows, which is a valid (empty) report. Any
// malformed row fails the whole file so its transaction rolls back as a
// unit.
func ParseReportFile(path string) ([]ParsedRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("report is empty: missing header")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	dateIdx, metricIdx, valueIdx := -1, -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "date":
			dateIdx = i
		case "metric":
			metricIdx = i
		case "value":
			valueIdx = i
		}
	}
	if dateIdx < 0 || metricIdx < 0 || valueIdx < 0 {
		return nil, fmt.Errorf("report header must contain date, metric and value columns, got %v", header)
	}

	var rows []ParsedRow
	line := 1
	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read row at line %d: %w", line, err)
		}

		date, err := time.Parse(reportDateLayout, strings.TrimSpace(fields[dateIdx]))
		if err != nil {
			return nil, fmt.Errorf("bad date at line %d: %w", line, err)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(fields[valueIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("bad value at line %d: %w", line, err)
		}
		metric := strings.TrimSpace(fields[metricIdx])
		if metric == "" {
			return nil, fmt.Errorf("empty metric at line %d", line)
		}

		extra := domain.FieldMap{}
		for i, col := range header {
			if i == dateIdx || i == metricIdx || i == valueIdx || i >= len(fields) {
				continue
			}
			extra[strings.ToLower(strings.TrimSpace(col))] = fields[i]
		}

		rows = append(rows, ParsedRow{
			ReportDate: date,
			Metric:     metric,
			Value:      value,
			Extra:      extra,
		})
	}

	return rows, nil
}
