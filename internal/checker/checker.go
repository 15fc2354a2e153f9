// Package checker cross-validates a recommender over HTTP: for every dataset record it
// sends the first 80% of the user's shows and scores the recommendations against the rest.
package checker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"

	"mrecommender/pkg/config"
	"mrecommender/pkg/models"
)

const (
	DefaultAddress = "localhost:3000"
	// TrainFraction of each user's history is sent; the remainder is held out.
	TrainFraction      = 0.8
	recommendationPath = "/test_recommendation"
)

var ErrUnexpectedStatus = errors.New("unexpected status from recommender")

// Checker posts training slices to a recommender and scores the answers
type Checker struct {
	client     *http.Client
	url        string
	maxRetries uint64
	logger     *slog.Logger
	out        io.Writer
}

// New creates a checker for the recommender at address (host:port), reading
// timeout-seconds and max-retries from the "checker" sub-config. Per record
// scores are printed to out.
func New(address string, cfg *config.Config, out io.Writer, logger *slog.Logger) *Checker {
	if address == "" {
		address = DefaultAddress
	}
	timeout := cfg.GetIntWithDefault("timeout-seconds", 30)
	maxRetries := cfg.GetIntWithDefault("max-retries", 3)
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Checker{
		client:     &http.Client{Timeout: time.Duration(timeout) * time.Second},
		url:        "http://" + address + recommendationPath,
		maxRetries: uint64(maxRetries),
		logger:     logger,
		out:        out,
	}
}

// URL returns the endpoint recommendations are requested from
func (c *Checker) URL() string {
	return c.url
}

// Split divides shows into the training prefix and the held out suffix
func Split(shows []int64) (train, test []int64) {
	d := int(float64(len(shows)) * TrainFraction)
	return shows[:d], shows[d:]
}

// Score counts distinct recommendations that appear in test
func Score(recommended, test []int64) models.ValidationResult {
	held := make(map[int64]struct{}, len(test))
	for _, t := range test {
		held[t] = struct{}{}
	}

	recs := slices.Clone(recommended)
	slices.Sort(recs)
	recs = slices.Compact(recs)

	hits := 0
	for _, r := range recs {
		if _, ok := held[r]; ok {
			hits++
		}
	}

	result := models.ValidationResult{Hits: hits, TestSize: len(test)}
	if len(test) > 0 {
		result.Ratio = float64(hits) / float64(len(test))
	}
	return result
}

// Validate scores every record in order. Records whose held out slice is empty are
// skipped and do not count towards the average.
func (c *Checker) Validate(ctx context.Context, records []models.DatasetRecord) (*models.ValidationSummary, error) {
	summary := &models.ValidationSummary{}
	total := 0.0

	for _, rec := range records {
		train, test := Split(rec.Shows)
		if len(test) == 0 {
			c.logger.Warn("Skipping record without held out shows", "user", rec.UserID, "shows", len(rec.Shows))
			summary.Skipped++
			continue
		}

		recommended, err := c.Recommend(ctx, train)
		if err != nil {
			return nil, fmt.Errorf("user %d: %w", rec.UserID, err)
		}

		result := Score(recommended, test)
		result.UserID = rec.UserID
		summary.Results = append(summary.Results, result)
		total += result.Ratio

		fmt.Fprintf(c.out, "%d of %d => %g\n", result.Hits, result.TestSize, result.Ratio)
	}

	if len(summary.Results) > 0 {
		summary.Average = total / float64(len(summary.Results))
	}
	fmt.Fprintf(c.out, "%g%%\n", summary.Percent())
	return summary, nil
}

// Recommend posts train as a JSON array and decodes the recommended show ids.
// Transport errors and 5xx answers are retried with exponential backoff.
func (c *Checker) Recommend(ctx context.Context, train []int64) (models.Recommendation, error) {
	payload, err := json.Marshal(models.Recommendation(train))
	if err != nil {
		return nil, fmt.Errorf("failed to encode training shows: %w", err)
	}
	// json encodes a nil slice as null; the recommender expects an array
	if train == nil {
		payload = []byte("[]")
	}

	var recommended models.Recommendation
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, resp.Body)
			err := fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
			if resp.StatusCode >= http.StatusInternalServerError {
				return err
			}
			return backoff.Permanent(err)
		}

		recommended = nil
		if err := json.NewDecoder(resp.Body).Decode(&recommended); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode recommendations: %w", err))
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Recommendation request failed, retrying", "url", c.url, "error", err, "wait", wait)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}
	return recommended, nil
}

func newExponentialBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}
