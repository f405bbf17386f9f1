package kernels

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/born-ml/gpgpu/internal/ir"
)

// ActivationKind selects the elementwise function applied to results.
type ActivationKind uint8

// Supported activations.
const (
	Linear ActivationKind = iota
	ReLU
	ReLU6
	ELU
	Sigmoid
	Tanh
	LeakyReLU
)

var activationNames = map[ActivationKind]string{
	Linear:    "linear",
	ReLU:      "relu",
	ReLU6:     "relu6",
	ELU:       "elu",
	Sigmoid:   "sigmoid",
	Tanh:      "tanh",
	LeakyReLU: "leakyrelu",
}

// Activation is an activation function. Alpha is the negative slope of
// LeakyReLU and ignored otherwise. The zero value is Linear.
type Activation struct {
	Kind  ActivationKind
	Alpha float64
}

// String returns the activation name, e.g. "relu" or "leakyrelu(0.2)".
func (a Activation) String() string {
	name, ok := activationNames[a.Kind]
	if !ok {
		return fmt.Sprintf("activation(%d)", a.Kind)
	}
	if a.Kind == LeakyReLU {
		return name + "(" + strconv.FormatFloat(a.Alpha, 'g', -1, 64) + ")"
	}
	return name
}

// ParseActivation parses the names produced by String. "leakyrelu" without
// a slope uses 0.2.
func ParseActivation(s string) (Activation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Activation{}, nil
	}
	if rest, ok := strings.CutPrefix(s, "leakyrelu"); ok {
		if rest == "" {
			return Activation{Kind: LeakyReLU, Alpha: 0.2}, nil
		}
		if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
			return Activation{}, fmt.Errorf("kernels: bad activation %q", s)
		}
		alpha, err := strconv.ParseFloat(rest[1:len(rest)-1], 64)
		if err != nil {
			return Activation{}, fmt.Errorf("kernels: bad activation %q: %w", s, err)
		}
		return Activation{Kind: LeakyReLU, Alpha: alpha}, nil
	}
	for k, name := range activationNames {
		if name == s {
			return Activation{Kind: k}, nil
		}
	}
	return Activation{}, fmt.Errorf("kernels: unknown activation %q", s)
}

// FnActivation is the name of the emitted activation helper.
const FnActivation = "activation"

// Func returns fn activation(v: t) -> t for t f32 or vec4<f32>.
func (a Activation) Func(t ir.Type) *ir.Function {
	return ir.Func(FnActivation, []ir.Param{{Name: "v", Type: t}}, t, ir.Ret(a.Apply(ir.V("v"), t)))
}

// Apply returns the activation of v, which has type t.
func (a Activation) Apply(v ir.Expr, t ir.Type) ir.Expr {
	splat := func(f float64) ir.Expr {
		if t.Width == 1 {
			return ir.Float(f)
		}
		return ir.Make(t, ir.Float(f))
	}
	positive := ir.Gt(v, splat(0))
	switch a.Kind {
	case ReLU:
		return ir.Fn("max", v, splat(0))
	case ReLU6:
		return ir.Fn("clamp", v, splat(0), splat(6))
	case ELU:
		return ir.Fn("select", ir.Sub(ir.Fn("exp", v), ir.Float(1)), v, positive)
	case Sigmoid:
		return ir.Div(ir.Float(1), ir.Add(ir.Float(1), ir.Fn("exp", ir.Neg(v))))
	case Tanh:
		return ir.Fn("tanh", v)
	case LeakyReLU:
		return ir.Fn("select", ir.Mul(v, ir.Float(a.Alpha)), v, positive)
	}
	return v
}

// Eval applies the activation on the host.
func (a Activation) Eval(x float32) float32 {
	switch a.Kind {
	case ReLU:
		return max(x, 0)
	case ReLU6:
		return min(max(x, 0), 6)
	case ELU:
		if x > 0 {
			return x
		}
		return float32(math.Exp(float64(x))) - 1
	case Sigmoid:
		return 1 / (1 + float32(math.Exp(float64(-x))))
	case Tanh:
		return float32(math.Tanh(float64(x)))
	case LeakyReLU:
		if x > 0 {
			return x
		}
		return x * float32(a.Alpha)
	}
	return x
}
