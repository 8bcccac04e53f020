package retrieval

import "sort"

// coverageOK is the two-threshold confidence gate: the best of the top-K
// scores must clear scoreMin and their mean must clear scoreAvg. The pair
// rejects both "no good match" and "one lucky match surrounded by noise".
func coverageOK(scores []float64, topK int, scoreMin, scoreAvg float64) bool {
	if len(scores) == 0 {
		return false
	}

	s := make([]float64, len(scores))
	copy(s, scores)
	sort.Sort(sort.Reverse(sort.Float64Slice(s)))
	if topK > 0 && len(s) > topK {
		s = s[:topK]
	}

	if s[0] < scoreMin {
		return false
	}

	sum := 0.0
	for _, v := range s {
		sum += v
	}
	return sum/float64(len(s)) >= scoreAvg
}
