package domain

import "fmt"

// ValidateScore enforces total >= 1 and 0 <= score <= total.
func ValidateScore(score, total int) error {
	if total <= 0 {
		return fmt.Errorf("%w: total must be positive, got %d", ErrInvalidScore, total)
	}
	if score < 0 || score > total {
		return fmt.Errorf("%w: score %d outside [0,%d]", ErrInvalidScore, score, total)
	}
	return nil
}

// Percentage returns round(100*score/total), halves rounding up. total must be positive.
func Percentage(score, total int) int {
	return (200*score + total) / (2 * total)
}

// GradeFor maps a percentage onto the fixed letter scale.
func GradeFor(percentage int) string {
	switch {
	case percentage >= 90:
		return "A"
	case percentage >= 80:
		return "B"
	case percentage >= 70:
		return "C"
	case percentage >= 60:
		return "D"
	default:
		return "F"
	}
}
