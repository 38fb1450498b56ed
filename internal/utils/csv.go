package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"quantPilot/internal/domain"
)

// WriteTicksToCSV writes price ticks to a CSV file with a header row.
func WriteTicksToCSV(ticks []*domain.PriceTick, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write([]string{"timestamp", "price", "volume"})
	for _, t := range ticks {
		writer.Write([]string{
			t.Timestamp.Format(time.RFC3339Nano),
			strconv.FormatFloat(t.Price, 'f', -1, 64),
			strconv.FormatFloat(t.Volume, 'f', -1, 64),
		})
	}
	return writer.Error()
}

// ReadTicksFromCSV reads price ticks from a CSV file written by
// WriteTicksToCSV, skipping the header row.
func ReadTicksFromCSV(filename string) ([]*domain.PriceTick, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv file %s is empty", filename)
	}

	ticks := make([]*domain.PriceTick, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < 3 {
			return nil, fmt.Errorf("csv row %d: expected 3 columns, got %d", i+2, len(rec))
		}
		ts, err := time.Parse(time.RFC3339Nano, rec[0])
		if err != nil {
			return nil, fmt.Errorf("csv row %d: invalid timestamp %q: %w", i+2, rec[0], err)
		}
		price, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("csv row %d: invalid price %q: %w", i+2, rec[1], err)
		}
		volume, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("csv row %d: invalid volume %q: %w", i+2, rec[2], err)
		}
		ticks = append(ticks, &domain.PriceTick{Timestamp: ts, Price: price, Volume: volume})
	}
	return ticks, nil
}
