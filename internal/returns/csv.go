package returns

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/victoralfred/varbacktest/internal/core/domain"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006",
}

var valueColumns = []string{"close", "adj close", "adj_close", "price", "return", "returns", "value"}
var timeColumns = []string{"date", "time", "timestamp", "datetime"}

type row struct {
	line  int
	time  time.Time
	value string
}

// LoadCSV reads closing prices. The file may carry a header naming the
// date and close columns; without one, a single column is read as prices
// and two or more as date,close. Rows with an empty close are skipped.
func LoadCSV(r io.Reader) ([]PricePoint, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}

	prices := make([]PricePoint, 0, len(rows))
	for _, rw := range rows {
		d, err := decimal.NewFromString(rw.value)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid close %q: %w", rw.line, rw.value, err)
		}
		prices = append(prices, PricePoint{Time: rw.time, Close: d})
	}
	return prices, nil
}

// LoadReturnsCSV reads a series that already holds returns
func LoadReturnsCSV(r io.Reader) ([]domain.Observation, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}

	obs := make([]domain.Observation, 0, len(rows))
	for _, rw := range rows {
		v, err := strconv.ParseFloat(rw.value, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid return %q: %w", rw.line, rw.value, err)
		}
		obs = append(obs, domain.Observation{Time: rw.time, Return: v})
	}
	return obs, nil
}

func readRows(r io.Reader) ([]row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("csv is empty")
	}

	timeCol, valueCol, hasHeader := columns(records[0])
	if valueCol < 0 {
		return nil, fmt.Errorf("csv header %v has no close column", records[0])
	}

	start := 0
	if hasHeader {
		start = 1
	}

	rows := make([]row, 0, len(records)-start)
	for i := start; i < len(records); i++ {
		rec := records[i]
		line := i + 1
		if valueCol >= len(rec) {
			continue
		}

		value := strings.TrimSpace(rec[valueCol])
		if isMissing(value) {
			continue
		}

		rw := row{line: line, value: value}
		if timeCol >= 0 && timeCol < len(rec) {
			ts, err := parseTime(strings.TrimSpace(rec[timeCol]))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			rw.time = ts
		}
		rows = append(rows, rw)
	}

	return rows, nil
}

// columns locates the time and value columns. A first record whose last
// field does not parse as a number is treated as a header.
func columns(first []string) (timeCol, valueCol int, hasHeader bool) {
	last := strings.TrimSpace(first[len(first)-1])
	if _, err := strconv.ParseFloat(last, 64); err == nil || isMissing(last) {
		if len(first) == 1 {
			return -1, 0, false
		}
		return 0, 1, false
	}

	timeCol, valueCol = -1, -1
	for i, name := range first {
		name = strings.ToLower(strings.TrimSpace(name))
		if timeCol < 0 && contains(timeColumns, name) {
			timeCol = i
		}
		if valueCol < 0 && contains(valueColumns, name) {
			valueCol = i
		}
	}
	if valueCol < 0 && len(first) == 1 {
		valueCol = 0
	}
	return timeCol, valueCol, true
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func isMissing(s string) bool {
	switch strings.ToLower(s) {
	case "", "nan", "null", "na":
		return true
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
