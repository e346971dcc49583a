package textutil

// CosineSimilarity computes the cosine similarity between two fingerprints.
// Returns 0 if either fingerprint is nil or has zero norm.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return min(dot/(a.norm*b.norm), 1)
}

// Retention scores how much of original's vocabulary survives in rewritten,
// from 0 (nothing shared) to 1. Identical strings always score 1.
func Retention(original, rewritten string) float64 {
	if original == rewritten {
		return 1
	}
	return CosineSimilarity(NewFingerprint(original), NewFingerprint(rewritten))
}
