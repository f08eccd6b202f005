package domain

// Criterion is one of the fixed rating dimensions a patient scores.
type Criterion string

const (
	CriterionOverall           Criterion = "overall"
	CriterionWaitTime          Criterion = "waitTime"
	CriterionStaffFriendliness Criterion = "staffFriendliness"
	CriterionCommunication     Criterion = "communication"
	CriterionOverallExperience Criterion = "overallExperience"
)

// Rating bounds, inclusive.
const (
	MinRating = 1
	MaxRating = 5
)

// Criteria lists every criterion in display order.
func Criteria() []Criterion {
	return []Criterion{
		CriterionOverall,
		CriterionWaitTime,
		CriterionStaffFriendliness,
		CriterionCommunication,
		CriterionOverallExperience,
	}
}

// ParseCriterion maps a wire key to a Criterion. Unknown keys are rejected.
func ParseCriterion(s string) (Criterion, bool) {
	c := Criterion(s)
	switch c {
	case CriterionOverall, CriterionWaitTime, CriterionStaffFriendliness,
		CriterionCommunication, CriterionOverallExperience:
		return c, true
	}
	return "", false
}

// Ratings holds one score per criterion.
type Ratings map[Criterion]int

// Clone returns a copy of r.
func (r Ratings) Clone() Ratings {
	out := make(Ratings, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
