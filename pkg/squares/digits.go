package squares

// LastDigit maps a running score to its last decimal digit. Total for all
// inputs; negative scores cannot occur upstream but still map into [0,9].
func LastDigit(score int) int {
	d := score % 10
	if d < 0 {
		d += 10
	}
	return d
}
