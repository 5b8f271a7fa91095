package services

import (
	"math"
	"time"
)

// ComputeDuration returns the wall-clock duration between start and end in
// milliseconds, or nil when either bound is missing.
func ComputeDuration(start, end *time.Time) *int64 {
	if start == nil || end == nil {
		return nil
	}
	ms := end.Sub(*start).Milliseconds()
	return &ms
}

// ComputeDurationMinutes returns the duration between start and end in
// whole minutes (rounded), for the per-step actual_duration field.
func ComputeDurationMinutes(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Minutes()))
}

// ComputeCompletionRate returns completed/total as a percentage. A zero
// total yields zero rather than NaN.
func ComputeCompletionRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

// ComputeProgress is the execution progress derived from required steps
// only: completedRequired/totalRequired*100, rounded to the nearest
// integer. A workflow without required steps reports 0 until completion
// sets it explicitly.
func ComputeProgress(completedRequired, totalRequired int) int {
	if totalRequired == 0 {
		return 0
	}
	return int(math.Round(float64(completedRequired) / float64(totalRequired) * 100))
}
