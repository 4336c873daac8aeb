package ensemble

// Confidence scores a consensus round.
//
//	r = succeeded / configured
//	conf = r * (0.5 + 0.5*agreement) * min(1, r/threshold)
//
// It is 1.0 only when every configured provider answered and all answers
// agree, stays strictly positive while at least one provider answered,
// falls monotonically with either the success ratio or the agreement, and
// is penalised further when the success ratio drops below threshold. A
// threshold of zero disables the penalty.
func Confidence(succeeded, configured int, agreement, threshold float64) float64 {
	if configured <= 0 || succeeded <= 0 {
		return 0
	}
	if succeeded > configured {
		succeeded = configured
	}
	agreement = clamp(agreement)

	r := float64(succeeded) / float64(configured)
	conf := r * (0.5 + 0.5*agreement)
	if threshold > 0 && r < threshold {
		conf *= r / threshold
	}
	return clamp(conf)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
