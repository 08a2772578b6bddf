package bkn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizedMutualInfo(t *testing.T) {
	tests := []struct {
		name string
		a, b []int
		want float64
	}{
		{"identical", []int{0, 0, 1, 1, 2}, []int{0, 0, 1, 1, 2}, 1},
		{"relabelled", []int{0, 0, 1, 1}, []int{1, 1, 0, 0}, 1},
		{"independent", []int{0, 0, 1, 1}, []int{0, 1, 0, 1}, 0},
		{"single cluster each", []int{0, 0, 0}, []int{1, 1, 1}, 1},
		{"empty", []int{}, []int{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nmi, err := NormalizedMutualInfo(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, nmi, 1e-12)
		})
	}
}

func TestNormalizedMutualInfoPartialAgreement(t *testing.T) {
	nmi, err := NormalizedMutualInfo([]int{0, 0, 0, 1, 1, 1}, []int{0, 0, 1, 1, 1, 1})
	require.NoError(t, err)
	assert.Greater(t, nmi, 0.0)
	assert.Less(t, nmi, 1.0)
}

func TestNormalizedMutualInfoLengthMismatch(t *testing.T) {
	_, err := NormalizedMutualInfo([]int{0, 1}, []int{0})
	assert.Error(t, err)
}
