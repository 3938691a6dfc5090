package aggregate

// SafeDivide returns num/den, or nil when den is zero.
func SafeDivide(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	v := num / den
	return &v
}

// Ratio is SafeDivide for counts.
func Ratio(num, den int) *float64 {
	return SafeDivide(float64(num), float64(den))
}

// Mean is the unweighted mean of the non-nil values, or nil if there are none.
func Mean(values []*float64) *float64 {
	var sum float64
	var n int
	for _, v := range values {
		if v == nil {
			continue
		}
		sum += *v
		n++
	}
	return SafeDivide(sum, float64(n))
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
