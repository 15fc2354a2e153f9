// Package dataset turns raw "user,show,created_at" dumps into per-user show lists
// and reads those lists back for validation.
package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"mrecommender/pkg/models"
)

// MinShowsPerUser is the history length below which a user is left out of the dataset
const MinShowsPerUser = 25

const nilField = "<nil>"

var ErrMalformedLine = errors.New("malformed line")

// Prepare aggregates CSV rows from in by user and writes one "<user>: s1,s2,..." line
// per user with at least MinShowsPerUser rows, ordered by user id. It returns the
// number of users written.
func Prepare(in io.Reader, out io.Writer) (int, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	shows := make(map[int64][]int64)
	for line := 0; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("%w %d: %w", ErrMalformedLine, line, err)
		}
		if len(row) < 2 {
			return 0, fmt.Errorf("%w %d: expected user,show[,created_at], got %d fields", ErrMalformedLine, line, len(row))
		}

		userField := strings.Trim(row[0], `"`)
		showField := strings.Trim(row[1], `"`)
		if userField == nilField || showField == nilField {
			continue
		}

		user, err := strconv.ParseInt(userField, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w %d: invalid user id %q: %w", ErrMalformedLine, line, userField, err)
		}
		// show ids come out of the database export as floats
		show, err := strconv.ParseFloat(showField, 64)
		if err != nil {
			return 0, fmt.Errorf("%w %d: invalid show id %q: %w", ErrMalformedLine, line, showField, err)
		}
		shows[user] = append(shows[user], int64(show))
	}

	var records []models.DatasetRecord
	for user, userShows := range shows {
		if len(userShows) < MinShowsPerUser {
			continue
		}
		records = append(records, models.DatasetRecord{UserID: user, Shows: slices.Compact(userShows)})
	}
	slices.SortFunc(records, func(a, b models.DatasetRecord) int {
		return compareInt64(a.UserID, b.UserID)
	})

	if err := WriteRecords(out, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// WriteRecords writes records in the dataset text format
func WriteRecords(w io.Writer, records []models.DatasetRecord) error {
	bw := bufio.NewWriter(w)
	for _, rec := range records {
		ids := make([]string, len(rec.Shows))
		for i, s := range rec.Shows {
			ids[i] = strconv.FormatInt(s, 10)
		}
		if _, err := fmt.Fprintf(bw, "%d: %s\n", rec.UserID, strings.Join(ids, ",")); err != nil {
			return fmt.Errorf("failed to write dataset: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	return nil
}

// ReadRecords parses a prepared dataset. Blank lines are skipped.
func ReadRecords(r io.Reader) ([]models.DatasetRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var records []models.DatasetRecord
	for line := 0; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		rec, err := parseRecord(text)
		if err != nil {
			return nil, fmt.Errorf("%w %d: %w", ErrMalformedLine, line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return records, nil
}

func parseRecord(text string) (models.DatasetRecord, error) {
	userPart, showsPart, ok := strings.Cut(text, ":")
	if !ok {
		return models.DatasetRecord{}, errors.New("missing ':' separator")
	}
	user, err := strconv.ParseInt(strings.TrimSpace(userPart), 10, 64)
	if err != nil {
		return models.DatasetRecord{}, fmt.Errorf("invalid user id: %w", err)
	}

	fields := strings.Split(showsPart, ",")
	rec := models.DatasetRecord{UserID: user, Shows: make([]int64, 0, len(fields))}
	for _, f := range fields {
		show, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return models.DatasetRecord{}, fmt.Errorf("invalid show id %q: %w", f, err)
		}
		rec.Shows = append(rec.Shows, show)
	}
	return rec, nil
}
