package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Average is a per-criterion mean rounded to one decimal. Valid is false when
// there are no reviews to average; it then encodes as JSON null.
type Average struct {
	Value float64
	Valid bool
}

// NoData is the average of an empty review set.
var NoData = Average{}

// MarshalJSON implements json.Marshaler.
func (a Average) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(a.Value, 'f', 1, 64)), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Average) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*a = NoData
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*a = Average{Value: v, Valid: true}
	return nil
}

// MeanOf returns sum/count rounded half away from zero to one decimal place.
// Integer arithmetic keeps values like 4.25 from drifting under float error.
func MeanOf(sum, count int64) Average {
	if count <= 0 {
		return NoData
	}
	num := 20 * sum
	if num < 0 {
		num -= count
	} else {
		num += count
	}
	tenths := num / (2 * count)
	return Average{Value: float64(tenths) / 10, Valid: true}
}

// DistributionBucket maps an overall rating to its star bucket, rounding half
// up and clamping to the rating bounds.
func DistributionBucket(overall float64) int {
	b := int(math.Floor(overall + 0.5))
	return min(max(b, MinRating), MaxRating)
}

// AggregateSnapshot is the derived rating summary of one provider.
type AggregateSnapshot struct {
	SubjectID    string                `json:"provider_id"`
	ReviewCount  int                   `json:"review_count"`
	Averages     map[Criterion]Average `json:"averages"`
	Distribution map[int]int           `json:"distribution"`
}

// EmptySnapshot returns the snapshot of a provider with no reviews: every
// average is NoData and every bucket is zero.
func EmptySnapshot(subjectID string) AggregateSnapshot {
	s := AggregateSnapshot{
		SubjectID:    subjectID,
		Averages:     make(map[Criterion]Average, len(Criteria())),
		Distribution: make(map[int]int, MaxRating),
	}
	for _, c := range Criteria() {
		s.Averages[c] = NoData
	}
	for b := MinRating; b <= MaxRating; b++ {
		s.Distribution[b] = 0
	}
	return s
}
