package game

import "math/rand"

// Shuffle returns a shuffled copy. The input is never reordered in place;
// reducers hand out fresh slices so broadcast snapshots stay stable.
func Shuffle[T any](rng *rand.Rand, items []T) []T {
	out := append([]T(nil), items...)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// ChooseOne picks a uniformly random element.
func ChooseOne[T any](rng *rand.Rand, items []T) T {
	return items[rng.Intn(len(items))]
}
