package bkn

import (
	"fmt"
	"math"
)

// NormalizedMutualInfo calculates Normalized Mutual Information (NMI) between two clusterings
// Returns NMI score between 0 and 1
func NormalizedMutualInfo(clustering1, clustering2 []int) (float64, error) {
	if len(clustering1) != len(clustering2) {
		return 0, fmt.Errorf("clusterings must have the same length: %d != %d", len(clustering1), len(clustering2))
	}

	n := len(clustering1)
	if n == 0 {
		return 0, nil
	}

	contingency := make(map[[2]int]int)
	counts1 := make(map[int]int)
	counts2 := make(map[int]int)
	for i := 0; i < n; i++ {
		contingency[[2]int{clustering1[i], clustering2[i]}]++
		counts1[clustering1[i]]++
		counts2[clustering2[i]]++
	}

	mi := 0.0
	for pair, nij := range contingency {
		ni := counts1[pair[0]]
		nj := counts2[pair[1]]
		mi += float64(nij) / float64(n) * math.Log2(float64(nij)*float64(n)/(float64(ni)*float64(nj)))
	}

	// Normalize MI by average entropy
	avgEntropy := (entropy(counts1, n) + entropy(counts2, n)) / 2

	// Both clusterings have a single cluster
	if avgEntropy == 0 {
		return 1.0, nil
	}

	return mi / avgEntropy, nil
}

func entropy(counts map[int]int, n int) float64 {
	h := 0.0
	for _, count := range counts {
		p := float64(count) / float64(n)
		if p > 0 {
			h -= p * math.Log2(p)
		}
	}
	return h
}
