package trend

// r2Tolerance is the parsimony band: a simpler model within this much R²
// of the best fit wins the selection.
const r2Tolerance = 0.01

// SelectBest picks among fitted models by R² with a parsimony tie-break:
// when a model with fewer terms is within r2Tolerance of the highest R²,
// the simpler model is preferred. Nil models are skipped; returns nil
// when nothing fit.
func SelectBest(models ...*Model) *Model {
	var best *Model
	bestR2 := 0.0
	for _, m := range models {
		if !m.usable() {
			continue
		}
		if best == nil || m.R2 > bestR2 {
			best = m
			bestR2 = m.R2
		}
	}
	if best == nil {
		return best
	}

	for _, m := range models {
		if !m.usable() || m == best {
			continue
		}
		if m.terms < best.terms && m.R2 >= bestR2-r2Tolerance {
			best = m
		}
	}
	return best
}
