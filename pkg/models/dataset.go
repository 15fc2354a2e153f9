package models

// DatasetRecord is one line of a prepared dataset: a user and the shows they watched,
// in the order they appeared in the raw dump.
type DatasetRecord struct {
	UserID int64
	Shows  []int64
}

// Recommendation is the JSON array exchanged with a recommender: the training shows
// on the way in, the recommended shows on the way out.
type Recommendation []int64

// ValidationResult scores a single dataset record.
type ValidationResult struct {
	UserID   int64   `json:"userId"`
	Hits     int     `json:"hits"`
	TestSize int     `json:"testSize"`
	Ratio    float64 `json:"ratio"`
}

// ValidationSummary aggregates the per record results of a validation run.
type ValidationSummary struct {
	Results []ValidationResult `json:"results"`
	Skipped int                `json:"skipped"`
	Average float64            `json:"average"`
}

// Percent returns the mean hit ratio as a percentage.
func (s *ValidationSummary) Percent() float64 {
	return s.Average * 100
}
