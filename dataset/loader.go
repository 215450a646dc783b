package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/aluiziolira/go-books-api/models"
	"github.com/aluiziolira/go-books-api/pipeline"
)

// Load reads the persisted dataset file written by the crawl. Loading is
// all-or-nothing: any structural problem (missing file, wrong header,
// unparseable row) yields the empty sentinel together with the error, never
// a partially-populated table.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Empty(), fmt.Errorf("open dataset file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(pipeline.Header)

	rows, err := reader.ReadAll()
	if err != nil {
		return Empty(), fmt.Errorf("read dataset file: %w", err)
	}
	if len(rows) == 0 {
		return Empty(), fmt.Errorf("dataset file %q has no header row", path)
	}
	if err := checkHeader(rows[0]); err != nil {
		return Empty(), err
	}

	records := make([]*models.BookRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		record, err := parseRow(row)
		if err != nil {
			return Empty(), fmt.Errorf("row %d: %w", i+2, err)
		}
		records = append(records, record)
	}
	return New(records), nil
}

func checkHeader(row []string) error {
	for i, want := range pipeline.Header {
		if row[i] != want {
			return fmt.Errorf("unexpected header column %d: got %q, want %q", i, row[i], want)
		}
	}
	return nil
}

func parseRow(row []string) (*models.BookRecord, error) {
	id, err := strconv.Atoi(row[0])
	if err != nil {
		return nil, fmt.Errorf("parse id %q: %w", row[0], err)
	}
	price, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", row[2], err)
	}
	rating, err := strconv.Atoi(row[3])
	if err != nil {
		return nil, fmt.Errorf("parse rating %q: %w", row[3], err)
	}
	availability, err := strconv.ParseBool(row[4])
	if err != nil {
		return nil, fmt.Errorf("parse availability %q: %w", row[4], err)
	}

	return &models.BookRecord{
		ID:           id,
		Title:        row[1],
		Price:        price,
		Rating:       rating,
		Availability: availability,
		Category:     row[5],
		ImageURL:     row[6],
		DetailURL:    row[7],
	}, nil
}
