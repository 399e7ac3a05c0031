package optimizer

import (
	"fmt"
	"math"
	"sort"

	"golang-quant/internal/dto"
	"golang-quant/pkg/apperror"
)

// CountCombinations returns the size of the grid's Cartesian product, or
// ErrTooManyCombinations once it exceeds ceiling.
func CountCombinations(grid dto.ParameterGrid, ceiling int) (int, error) {
	total := 1
	for _, name := range sortedNames(grid) {
		n := len(grid[name])
		if n == 0 {
			return 0, apperror.Data("parameter %q has no candidate values", name)
		}
		if total > math.MaxInt/n {
			return 0, apperror.ErrTooManyCombinations
		}
		total *= n
	}
	if ceiling > 0 && total > ceiling {
		return 0, fmt.Errorf("%w: %d combinations, limit is %d", apperror.ErrTooManyCombinations, total, ceiling)
	}
	return total, nil
}

// Enumerate lists every combination of grid in a fixed order: names sorted,
// the last name varying fastest. An empty grid yields one empty combination.
func Enumerate(grid dto.ParameterGrid) []dto.Params {
	names := sortedNames(grid)
	total := 1
	for _, name := range names {
		total *= len(grid[name])
	}
	if total == 0 {
		return nil
	}

	out := make([]dto.Params, 0, total)
	idx := make([]int, len(names))
	for {
		combo := make(dto.Params, len(names))
		for i, name := range names {
			combo[name] = grid[name][idx[i]]
		}
		out = append(out, combo)

		pos := len(names) - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < len(grid[names[pos]]) {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			return out
		}
	}
}

func sortedNames(grid dto.ParameterGrid) []string {
	names := make([]string, 0, len(grid))
	for name := range grid {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
