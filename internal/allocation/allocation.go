// Package allocation finds unused bit-triples for newly minted coins.
package allocation

import (
	"errors"

	"github.com/punchamoorthee/coinmarket/internal/domain"
)

// ErrNoCapacity is returned when every valid triple is already used.
var ErrNoCapacity = errors.New("bit-triple space exhausted")

// Capacity is C(maxBit, 3), the number of valid triples.
func Capacity(maxBit int) int64 {
	if maxBit < 3 {
		return 0
	}
	n := int64(maxBit)
	return n * (n - 1) * (n - 2) / 6
}

// Next returns the lexicographically smallest valid triple that is not in
// used. Triples in used that fall outside [1, maxBit] are ignored.
//
// The result is a candidate only; the store's uniqueness constraint decides.
func Next(used map[domain.Triple]struct{}, maxBit int) (domain.Triple, error) {
	// Per-prefix usage lets whole exhausted blocks be skipped without
	// changing which triple is found first.
	byFirst := make(map[int]int64)
	byPair := make(map[[2]int]int64)
	for t := range used {
		if !t.Valid(maxBit) {
			continue
		}
		byFirst[t.B1]++
		byPair[[2]int{t.B1, t.B2}]++
	}

	for i := 1; i <= maxBit-2; i++ {
		rest := int64(maxBit - i)
		if byFirst[i] >= rest*(rest-1)/2 {
			continue
		}
		for j := i + 1; j <= maxBit-1; j++ {
			if byPair[[2]int{i, j}] >= int64(maxBit-j) {
				continue
			}
			for k := j + 1; k <= maxBit; k++ {
				t := domain.Triple{B1: i, B2: j, B3: k}
				if _, ok := used[t]; !ok {
					return t, nil
				}
			}
		}
	}
	return domain.Triple{}, ErrNoCapacity
}
