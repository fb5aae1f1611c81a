package mlp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

type Activator interface {
	Activate(i, j int, sum float64) float64
	Deactivate(m mat.Matrix) mat.Matrix
	fmt.Stringer
}

// PolyAct is the learned activation A*x^2 + B*x.
type PolyAct struct {
	A, B float64
}

func (p PolyAct) Activate(i, j int, sum float64) float64 {
	return p.A*sum*sum + p.B*sum
}

// Deactivate returns the derivative 2*A*x + B at every pre-activation.
func (p PolyAct) Deactivate(matrix mat.Matrix) mat.Matrix {
	r, c := matrix.Dims()
	o := mat.NewDense(r, c, nil)
	o.Apply(func(i, j int, v float64) float64 { return 2*p.A*v + p.B }, matrix)
	return o
}

func (p PolyAct) String() string {
	return fmt.Sprintf("poly(%.4gx^2%+.4gx)", p.A, p.B)
}

var _ Activator = PolyAct{}
