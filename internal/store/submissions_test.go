package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSubmission(region string) Submission {
	return Submission{
		Worker:       "Dana",
		Region:       region,
		Date:         time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		FRL:          62.5,
		Attendance:   88,
		Unemployment: 7.5,
		Evictions:    12,
		FoodScarcity: 30,
		Shutoffs:     4,
		Notes:        "pantry ran out early, again",
	}
}

func TestSubmissions_AppendWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "community_submissions.csv")
	s := NewSubmissions(path)

	require.NoError(t, s.Append(validSubmission("North")))
	require.NoError(t, s.Append(validSubmission("south")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Worker,Region,Date,FRL,Attendance,Unemployment,Evictions,Food Scarcity,Shutoffs,Notes", lines[0])
	assert.Equal(t, `Dana,North,2025-03-03,62.5,88,7.5,12,30,4,"pantry ran out early, again"`, lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "Dana,South,"))

	all, err := s.All()
	require.NoError(t, err)
	assert.Equal(t, SubmissionColumns, all.Columns)
	require.Equal(t, 2, all.Len())
	assert.Equal(t, "pantry ran out early, again", all.Rows[0][ColNotes])
}

func TestSubmissions_AppendPreservesExistingRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subs.csv")
	existing := "Worker,Region,Date,FRL,Attendance,Unemployment,Evictions,Food Scarcity,Shutoffs,Notes\n" +
		"Lee,East,2024-12-01,40,90,5,3,10,1,\n"
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o600))

	s := NewSubmissions(path)
	require.NoError(t, s.Append(validSubmission("West")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), existing))
}

func TestSubmissions_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subs.csv")
	s := NewSubmissions(path)

	tests := map[string]func(*Submission){
		"unknown region":   func(sub *Submission) { sub.Region = "Midwest" },
		"missing date":     func(sub *Submission) { sub.Date = time.Time{} },
		"frl above 100":    func(sub *Submission) { sub.FRL = 101 },
		"unemployment 31":  func(sub *Submission) { sub.Unemployment = 31 },
		"negative shutoff": func(sub *Submission) { sub.Shutoffs = -1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			sub := validSubmission("North")
			mutate(&sub)
			assert.ErrorIs(t, s.Append(sub), ErrInvalidSubmission)
		})
	}

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "rejected submissions must not create the file")
}

func TestSubmissions_AllMissingFile(t *testing.T) {
	s := NewSubmissions(filepath.Join(t.TempDir(), "none.csv"))
	all, err := s.All()
	require.NoError(t, err)
	assert.Equal(t, SubmissionColumns, all.Columns)
	assert.True(t, all.Empty())

	counts, err := s.RegionCounts()
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestSubmissions_ConcurrentAppendsAndCounts(t *testing.T) {
	s := NewSubmissions(filepath.Join(t.TempDir(), "subs.csv"))

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub := validSubmission(Regions[i%3])
			sub.Notes = fmt.Sprintf("report %d", i)
			assert.NoError(t, s.Append(sub))
		}(i)
	}
	wg.Wait()

	all, err := s.All()
	require.NoError(t, err)
	assert.Equal(t, 30, all.Len())

	counts, err := s.RegionCounts()
	require.NoError(t, err)
	assert.Equal(t, []RegionCount{
		{Region: "East", Reports: 10},
		{Region: "North", Reports: 10},
		{Region: "South", Reports: 10},
	}, counts)
}
