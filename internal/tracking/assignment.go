package tracking

import "math"

// Forbidden marks a cost-matrix entry that must never be selected.
const Forbidden = 1e18

// Assign solves the rectangular assignment problem for an n×m cost matrix with
// the Kuhn-Munkres algorithm (Jonker-Volgenant potentials), O(d³) with
// d = max(n, m). It returns assign[i] = column for row i, or -1 when row i is
// unassigned. Entries >= Forbidden are never returned.
func Assign(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	result := make([]int, n)
	if m == 0 {
		for i := range result {
			result[i] = -1
		}
		return result
	}

	// Pad to a square matrix. Dummy cells cost 0 so padding never competes
	// with real costs; forbidden cells get a finite penalty larger than any
	// full assignment of allowed cells, keeping potentials at data scale.
	dim := n
	if m > dim {
		dim = m
	}
	maxCost := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			if cv := math.Abs(cost[i][j]); cost[i][j] < Forbidden && cv > maxCost {
				maxCost = cv
			}
		}
	}
	penalty := float64(dim)*(maxCost+1) + 1
	c := make([][]float64, dim)
	for i := range c {
		c[i] = make([]float64, dim)
		for j := range c[i] {
			switch {
			case i >= n || j >= m:
				c[i][j] = 0
			case cost[i][j] >= Forbidden:
				c[i][j] = penalty
			default:
				c[i][j] = cost[i][j]
			}
		}
	}

	const inf = math.MaxFloat64 / 2

	// 1-indexed; column 0 is virtual.
	u := make([]float64, dim+1)
	v := make([]float64, dim+1)
	p := make([]int, dim+1) // p[j] = row matched to column j
	way := make([]int, dim+1)
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0
		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1

			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := c[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			if j1 < 0 {
				break
			}

			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	rowToCol := make([]int, dim)
	for i := range rowToCol {
		rowToCol[i] = -1
	}
	for j := 1; j <= dim; j++ {
		if p[j] > 0 {
			rowToCol[p[j]-1] = j - 1
		}
	}

	for i := 0; i < n; i++ {
		col := rowToCol[i]
		if col < 0 || col >= m || cost[i][col] >= Forbidden {
			result[i] = -1
		} else {
			result[i] = col
		}
	}
	return result
}
