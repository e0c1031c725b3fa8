package distances

// HistogramIntersection is the similarity between two sparse count bags:
// the sum over shared keys of the smaller count. Iterating the first bag is
// sufficient since absent keys contribute nothing.
func HistogramIntersection[K comparable](a, b map[K]uint32) float64 {
	var sim uint64
	for k, av := range a {
		if bv, ok := b[k]; ok {
			if bv < av {
				sim += uint64(bv)
			} else {
				sim += uint64(av)
			}
		}
	}
	return float64(sim)
}

// HistogramIntersectionRows is the dense-row form used for matrix bags.
func HistogramIntersectionRows(a, b []float64) float64 {
	var sim float64
	for i, av := range a {
		if av == 0 {
			continue
		}
		if bv := b[i]; bv < av {
			sim += bv
		} else {
			sim += av
		}
	}
	return sim
}
