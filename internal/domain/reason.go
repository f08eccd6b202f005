package domain

// ReasonCode classifies a moderation report.
type ReasonCode string

const (
	ReasonInappropriate      ReasonCode = "inappropriate"
	ReasonSpam               ReasonCode = "spam"
	ReasonOffTopic           ReasonCode = "off-topic"
	ReasonConflictOfInterest ReasonCode = "conflict-of-interest"
	ReasonFake               ReasonCode = "fake"
	ReasonOther              ReasonCode = "other"
)

// ReasonCodes returns the accepted report reasons.
func ReasonCodes() []ReasonCode {
	return []ReasonCode{
		ReasonInappropriate,
		ReasonSpam,
		ReasonOffTopic,
		ReasonConflictOfInterest,
		ReasonFake,
		ReasonOther,
	}
}

// IsValid reports whether c is one of ReasonCodes.
func (c ReasonCode) IsValid() bool {
	for _, v := range ReasonCodes() {
		if v == c {
			return true
		}
	}
	return false
}
