package scheduler

// CheckinDigits is the length of the identifier suffix used for self check-in.
const CheckinDigits = 4

// NormalizeDigits strips every non-digit character from s.
func NormalizeDigits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

// TrailingDigits returns the last n digits of the normalized identifier, or
// all of them when fewer than n exist.
func TrailingDigits(identifier string, n int) string {
	d := NormalizeDigits(identifier)
	if len(d) <= n {
		return d
	}
	return d[len(d)-n:]
}

// ValidCheckinDigits reports whether s is exactly CheckinDigits ASCII digits.
func ValidCheckinDigits(s string) bool {
	if len(s) != CheckinDigits {
		return false
	}
	return NormalizeDigits(s) == s
}

// Candidate is one roster entry considered for a self check-in.
type Candidate struct {
	ParticipantID string
	Identifier    string
}

// MatchDigits scans the roster in order and returns the indexes of every
// candidate whose identifier ends in digits. The first index is the winner
// under first-match-wins; more than one index means a collision.
func MatchDigits(roster []Candidate, digits string) []int {
	if !ValidCheckinDigits(digits) {
		return nil
	}
	var matches []int
	for i, c := range roster {
		if TrailingDigits(c.Identifier, CheckinDigits) == digits {
			matches = append(matches, i)
		}
	}
	return matches
}
