package vectorize

import "math"

// Cosine returns the cosine similarity of two normalized sparse vectors,
// which for unit vectors is their dot product. Entries are merged in column
// order. Scores over non-negative term weights always land in [0, 1];
// exactly 0 means no shared vocabulary.
func Cosine(a, b Vector) float64 {
	var dot float64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Col < b[j].Col:
			i++
		case a[i].Col > b[j].Col:
			j++
		default:
			dot += a[i].Weight * b[j].Weight
			i++
			j++
		}
	}
	return dot
}

// L2Norm returns the Euclidean norm of v.
func L2Norm(v Vector) float64 {
	var sum float64
	for _, t := range v {
		sum += t.Weight * t.Weight
	}
	return math.Sqrt(sum)
}

// Get returns the weight stored at col, or 0.
func (v Vector) Get(col int) float64 {
	for _, t := range v {
		if t.Col == col {
			return t.Weight
		}
		if t.Col > col {
			break
		}
	}
	return 0
}

// normalizeL2 scales v in place to unit norm. A zero vector is unchanged.
func normalizeL2(v Vector) {
	norm := L2Norm(v)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i].Weight /= norm
	}
}
