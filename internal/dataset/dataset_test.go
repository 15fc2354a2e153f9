package dataset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mrecommender/pkg/models"
)

// rawDump builds CSV rows giving user `count` shows, starting at show id first
func rawDump(user, first, count int) string {
	var b strings.Builder
	for i := 0; i < count; i++ {
		fmt.Fprintf(&b, "\"%d\",\"%d.0\",\"2020-01-01 00:00:00\"\n", user, first+i)
	}
	return b.String()
}

func TestPrepareFiltersShortHistories(t *testing.T) {
	input := rawDump(7, 100, MinShowsPerUser) + rawDump(8, 200, MinShowsPerUser-1)

	var out bytes.Buffer
	users, err := Prepare(strings.NewReader(input), &out)
	require.NoError(t, err)
	assert.Equal(t, 1, users)

	records, err := ReadRecords(&out)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(7), records[0].UserID)
	assert.Len(t, records[0].Shows, MinShowsPerUser)
	assert.Equal(t, int64(100), records[0].Shows[0])
}

func TestPrepareSortsUsersAndKeepsShowOrder(t *testing.T) {
	input := rawDump(30, 5, MinShowsPerUser) + rawDump(2, 900, MinShowsPerUser) + rawDump(11, 1, MinShowsPerUser)

	var out bytes.Buffer
	_, err := Prepare(strings.NewReader(input), &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "2: 900,901,"))
	assert.True(t, strings.HasPrefix(lines[1], "11: 1,2,"))
	assert.True(t, strings.HasPrefix(lines[2], "30: 5,6,"))
}

func TestPrepareSkipsNilAndTruncatesFloats(t *testing.T) {
	var b strings.Builder
	b.WriteString("\"<nil>\",\"1\",\"x\"\n")
	b.WriteString("\"3\",\"<nil>\",\"x\"\n")
	for i := 0; i < MinShowsPerUser; i++ {
		fmt.Fprintf(&b, "3,%d.9,2020-01-01\n", 40+i)
	}

	var out bytes.Buffer
	users, err := Prepare(strings.NewReader(b.String()), &out)
	require.NoError(t, err)
	require.Equal(t, 1, users)
	assert.True(t, strings.HasPrefix(out.String(), "3: 40,41,42,"))
}

func TestPrepareCollapsesConsecutiveDuplicates(t *testing.T) {
	var b strings.Builder
	for i := 0; i < MinShowsPerUser; i++ {
		fmt.Fprintf(&b, "1,%d\n", i/2)
	}
	b.WriteString("1,0\n")

	var out bytes.Buffer
	_, err := Prepare(strings.NewReader(b.String()), &out)
	require.NoError(t, err)
	assert.Equal(t, "1: 0,1,2,3,4,5,6,7,8,9,10,11,12,0\n", out.String())
}

func TestPrepareMalformedRows(t *testing.T) {
	tests := map[string]string{
		"single field": "1\n",
		"bad user":     "abc,1,2020\n",
		"bad show":     "1,xyz,2020\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Prepare(strings.NewReader(input), io.Discard)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedLine)
		})
	}
}

func TestReadRecords(t *testing.T) {
	input := "1: 10,20,30\n\n2:5\n"
	records, err := ReadRecords(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []models.DatasetRecord{
		{UserID: 1, Shows: []int64{10, 20, 30}},
		{UserID: 2, Shows: []int64{5}},
	}, records)
}

func TestReadRecordsMalformed(t *testing.T) {
	for _, input := range []string{"1 10,20", "x: 1", "1: 1,,2", "1: "} {
		_, err := ReadRecords(strings.NewReader(input))
		assert.ErrorIs(t, err, ErrMalformedLine, input)
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	records := []models.DatasetRecord{{UserID: 9, Shows: []int64{3, 1, 2}}}
	var buf bytes.Buffer
	require.NoError(t, WriteRecords(&buf, records))
	assert.Equal(t, "9: 3,1,2\n", buf.String())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPrepareFile(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "dump.csv")
	outPath := filepath.Join(dir, "nested", "out.dataset")
	require.NoError(t, os.MkdirAll(filepath.Dir(outPath), 0755))
	require.NoError(t, os.WriteFile(inPath, []byte(rawDump(5, 1, 30)), 0644))

	users, err := PrepareFile(context.Background(), inPath, outPath, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, users)

	records, err := ReadFile(outPath)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Len(t, records[0].Shows, 30)
}

func TestPrepareFileMissingInput(t *testing.T) {
	dir := t.TempDir()
	_, err := PrepareFile(context.Background(), filepath.Join(dir, "nope.csv"), filepath.Join(dir, "out"), discardLogger())
	assert.Error(t, err)
}

func TestConcurrentPrepareFileProducesWellFormedOutput(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "dump.csv")
	outPath := filepath.Join(dir, "out.dataset")

	var input strings.Builder
	for user := 1; user <= 200; user++ {
		input.WriteString(rawDump(user, user*1000, MinShowsPerUser))
	}
	require.NoError(t, os.WriteFile(inPath, []byte(input.String()), 0644))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := PrepareFile(context.Background(), inPath, outPath, discardLogger())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	records, err := ReadFile(outPath)
	require.NoError(t, err)
	assert.Len(t, records, 200)
}

func TestPrepareFileTimesOutOnHeldLock(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "dump.csv")
	outPath := filepath.Join(dir, "out.dataset")
	require.NoError(t, os.WriteFile(inPath, []byte(rawDump(1, 1, MinShowsPerUser)), 0644))

	held := flock.New(LockPath(outPath))
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer held.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = PrepareFile(ctx, inPath, outPath, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}
