package stats

import (
	"strings"
	"testing"
)

func TestNewComputesAverageMinMax(t *testing.T) {
	s := New([]int{1, 2, 3, 4, 5})
	if s.Count != 5 {
		t.Fatalf("Count = %d, want 5", s.Count)
	}
	if s.Average != 3 {
		t.Fatalf("Average = %v, want 3", s.Average)
	}
	if s.Min != 1 || s.Max != 5 {
		t.Fatalf("Min/Max = %d/%d, want 1/5", s.Min, s.Max)
	}
	if !s.HasStdDev {
		t.Fatal("expected a standard deviation with 5 samples")
	}
}

func TestNewSingleSampleHasNoStdDev(t *testing.T) {
	s := New([]int{7})
	if s.HasStdDev {
		t.Fatal("a single sample should not produce a standard deviation")
	}
	if s.Average != 7 || s.Min != 7 || s.Max != 7 {
		t.Fatalf("unexpected stats for single sample: %+v", s)
	}
}

func TestRowFormatsNoneForMissingStdDev(t *testing.T) {
	s := New([]int{7})
	if got, want := s.Row(), "1 | 7.00 | 7 | 7 | None |"; got != want {
		t.Fatalf("Row() = %q, want %q", got, want)
	}
}

func TestTableRendersRequestedOrder(t *testing.T) {
	rows := map[string]Stats{
		"size":      New([]int{1, 2, 3}),
		"completed": New([]int{4, 5, 6}),
	}
	out := Table("Section sizes", rows, []string{"size", "completed"})
	if out == "" {
		t.Fatal("expected non-empty table output")
	}
	sizeAt, completedAt := strings.Index(out, "| size |"), strings.Index(out, "| completed |")
	if sizeAt < 0 || completedAt < 0 || sizeAt > completedAt {
		t.Fatalf("expected the size row before the completed row, got:\n%s", out)
	}
}
