package optimizer

import (
	"time"

	"github.com/hakkape/ddd-snd/pkg/apperror"
)

// variable is the internal bookkeeping for a registered variable.
type variable struct {
	vtype   VarType
	lb, ub  float64
	objCoef float64
}

// constraint is the internal bookkeeping for a registered constraint.
type constraint struct {
	terms []Term
	sense Sense
	rhs   float64
}

// Model is the in-tree Solver implementation: a plain linear model that
// Optimize solves with branch-and-bound over a Big-M simplex relaxation
// (see simplex.go, branchandbound.go). It is not safe for concurrent
// use; each DDD iteration builds and solves its own Model.
type Model struct {
	name        string
	vars        []variable
	constraints []constraint

	// MaxNodes and Deadline bound the branch-and-bound search; both are
	// optional (MaxNodes <= 0 or a zero Deadline disables the bound).
	MaxNodes int
	Deadline time.Time

	status    Status
	objective float64
	solution  []float64
}

// NewModel creates an empty model. name is used only in error messages.
func NewModel(name string) *Model {
	return &Model{name: name, status: NotSolved}
}

// AddVariable implements Solver.
func (m *Model) AddVariable(vtype VarType, lb, ub, objCoef float64) VarRef {
	if vtype == Binary {
		lb, ub = 0, 1
	}
	m.vars = append(m.vars, variable{vtype: vtype, lb: lb, ub: ub, objCoef: objCoef})
	return VarRef(len(m.vars) - 1)
}

// AddConstraint implements Solver.
func (m *Model) AddConstraint(terms []Term, sense Sense, rhs float64) ConstrRef {
	cp := make([]Term, len(terms))
	copy(cp, terms)
	m.constraints = append(m.constraints, constraint{terms: cp, sense: sense, rhs: rhs})
	return ConstrRef(len(m.constraints) - 1)
}

// NumVars returns the number of registered variables.
func (m *Model) NumVars() int { return len(m.vars) }

// Optimize implements Solver by branch-and-bound over the LP
// relaxation. A model with no integer or binary variables solves as a
// single LP.
func (m *Model) Optimize() error {
	if len(m.vars) == 0 {
		m.status = Optimal
		m.objective = 0
		m.solution = nil
		return nil
	}

	result, err := branchAndBound(m)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeAlgorithmError, "branch and bound failed").
			WithField(m.name)
	}

	m.status = result.status
	m.objective = result.objective
	m.solution = result.values
	return nil
}

// Status implements Solver.
func (m *Model) Status() Status { return m.status }

// Value implements Solver.
func (m *Model) Value(v VarRef) float64 {
	if int(v) < 0 || int(v) >= len(m.solution) {
		return 0
	}
	return m.solution[v]
}

// ObjectiveValue implements Solver.
func (m *Model) ObjectiveValue() float64 { return m.objective }
