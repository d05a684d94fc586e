package optimizer

import "math"

// bigM is the penalty applied to artificial variables. Every objective
// coefficient in the models this package solves is a small multiple of
// a flow/fixed cost or a unit indicator, so a fixed constant several
// orders of magnitude larger dominates any genuine cost without
// overflowing float64 arithmetic on the dense tableau.
const bigM = 1e7

const simplexEpsilon = 1e-7

// lpRow is one constraint after shifting variables by their current
// lower bound (x = lb + x', x' >= 0) and normalizing the right-hand
// side to be non-negative.
type lpRow struct {
	coeffs map[int]float64
	sense  Sense
	rhs    float64
}

// solveLP solves the LP relaxation of the given variables and
// constraints under the supplied (possibly branch-and-bound-tightened)
// bounds, using a dense-tableau Big-M simplex with Bland's rule to
// guarantee termination without cycling.
func solveLP(vars []variable, cons []constraint, lb, ub []float64) (values []float64, objective float64, status Status) {
	n := len(vars)
	rows := buildRows(cons, lb, ub, n)
	normalizeRows(rows)

	m := len(rows)
	slackCol := make([]int, m)
	artCol := make([]int, m)
	for i := range slackCol {
		slackCol[i] = -1
		artCol[i] = -1
	}

	col := n
	for i, r := range rows {
		switch r.sense {
		case LessEqual:
			slackCol[i] = col
			col++
		case GreaterEqual:
			slackCol[i] = col
			col++
			artCol[i] = col
			col++
		case Equal:
			artCol[i] = col
			col++
		}
	}
	totalVarCols := col
	cols := totalVarCols + 1

	a := make([][]float64, m)
	for i := range a {
		a[i] = make([]float64, cols)
	}
	basis := make([]int, m)
	cost := make([]float64, totalVarCols)
	for j := 0; j < n; j++ {
		cost[j] = vars[j].objCoef
	}

	for i, r := range rows {
		for j, coeff := range r.coeffs {
			a[i][j] = coeff
		}
		a[i][cols-1] = r.rhs
		switch r.sense {
		case LessEqual:
			a[i][slackCol[i]] = 1
			basis[i] = slackCol[i]
		case GreaterEqual:
			a[i][slackCol[i]] = -1
			a[i][artCol[i]] = 1
			basis[i] = artCol[i]
			cost[artCol[i]] = bigM
		case Equal:
			a[i][artCol[i]] = 1
			basis[i] = artCol[i]
			cost[artCol[i]] = bigM
		}
	}

	reduced := make([]float64, totalVarCols)
	recomputeReduced := func() {
		for j := 0; j < totalVarCols; j++ {
			z := 0.0
			for i := 0; i < m; i++ {
				if a[i][j] != 0 {
					z += cost[basis[i]] * a[i][j]
				}
			}
			reduced[j] = cost[j] - z
		}
	}
	recomputeReduced()

	const maxIter = 20000
	for iter := 0; iter < maxIter; iter++ {
		enter := -1
		for j := 0; j < totalVarCols; j++ {
			if reduced[j] < -simplexEpsilon {
				enter = j
				break
			}
		}
		if enter == -1 {
			break
		}

		leave := -1
		minRatio := math.Inf(1)
		for i := 0; i < m; i++ {
			if a[i][enter] > simplexEpsilon {
				ratio := a[i][cols-1] / a[i][enter]
				if ratio < minRatio-simplexEpsilon {
					minRatio = ratio
					leave = i
				} else if math.Abs(ratio-minRatio) <= simplexEpsilon && (leave == -1 || basis[i] < basis[leave]) {
					minRatio = ratio
					leave = i
				}
			}
		}
		if leave == -1 {
			return nil, 0, Unbounded
		}

		pivot := a[leave][enter]
		for j := 0; j < cols; j++ {
			a[leave][j] /= pivot
		}
		for i := 0; i < m; i++ {
			if i == leave {
				continue
			}
			factor := a[i][enter]
			if factor == 0 {
				continue
			}
			for j := 0; j < cols; j++ {
				a[i][j] -= factor * a[leave][j]
			}
		}
		basis[leave] = enter
		recomputeReduced()
	}

	for i := 0; i < m; i++ {
		if artCol[i] != -1 && basis[i] == artCol[i] && a[i][cols-1] > 1e-6 {
			return nil, 0, Infeasible
		}
	}

	values = make([]float64, n)
	for i := 0; i < m; i++ {
		if basis[i] < n {
			values[basis[i]] = a[i][cols-1]
		}
	}

	objective = 0
	for j := 0; j < n; j++ {
		values[j] += lb[j]
		objective += vars[j].objCoef * values[j]
	}
	return values, objective, Optimal
}

func buildRows(cons []constraint, lb, ub []float64, n int) []lpRow {
	rows := make([]lpRow, 0, len(cons)+n)
	for _, c := range cons {
		coeffs := make(map[int]float64)
		rhs := c.rhs
		for _, t := range c.terms {
			coeffs[int(t.Var)] += t.Coeff
		}
		for j, coeff := range coeffs {
			rhs -= coeff * lb[j]
		}
		rows = append(rows, lpRow{coeffs: coeffs, sense: c.sense, rhs: rhs})
	}
	for j := 0; j < n; j++ {
		if !math.IsInf(ub[j], 1) {
			width := ub[j] - lb[j]
			if width < 0 {
				width = 0
			}
			rows = append(rows, lpRow{coeffs: map[int]float64{j: 1}, sense: LessEqual, rhs: width})
		}
	}
	return rows
}

func normalizeRows(rows []lpRow) {
	for i := range rows {
		if rows[i].rhs < 0 {
			rows[i].rhs = -rows[i].rhs
			for j := range rows[i].coeffs {
				rows[i].coeffs[j] = -rows[i].coeffs[j]
			}
			switch rows[i].sense {
			case LessEqual:
				rows[i].sense = GreaterEqual
			case GreaterEqual:
				rows[i].sense = LessEqual
			}
		}
	}
}
