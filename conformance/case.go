// Package conformance checks that the secure mean gradient revealed
// under every protocol matches the closed-form gradient of the
// arithmetic mean. It carries the static case table, a runner executing
// one case in an isolated session, and pass/fail aggregation.
package conformance

import (
	"fmt"

	"mpcten/tensor"
)

// Case is one gradient-conformance check: a fixture reduced over an
// axis spec under a named protocol, compared against an expected
// gradient. A nil Expected means "compare against the closed-form
// reference gradient".
type Case struct {
	Name     string
	Fixture  *tensor.Tensor
	Axis     tensor.AxisSpec
	Expected *tensor.Tensor
	Protocol string
}

// SharingProtocols are the secret-sharing protocols every table row
// runs under.
var SharingProtocols = []string{"Helix", "SecureNN"}

// fixtureRow is one (fixture, axis, expected) triple before it is
// crossed with the protocols.
type fixtureRow struct {
	name     string
	fixture  *tensor.Tensor
	axis     tensor.AxisSpec
	expected *tensor.Tensor
}

func rows() []fixtureRow {
	x := tensor.NewWithData([]float64{0.77})
	x2 := tensor.NewWithShape([]float64{21.34, -11.43, 6.291, 6.311}, 2, 2)
	x3 := tensor.NewWithShape([]float64{21.34, 21.34, 6.291, 6.291}, 2, 2)

	quarter := tensor.NewWithShape([]float64{0.25, 0.25, 0.25, 0.25}, 2, 2)
	half := tensor.NewWithShape([]float64{0.5, 0.5, 0.5, 0.5}, 2, 2)

	out := []fixtureRow{
		{"X", x, tensor.ReduceAll(), tensor.NewWithData([]float64{1.0})},
	}
	for _, f := range []struct {
		name    string
		fixture *tensor.Tensor
	}{{"X2", x2}, {"X3", x3}} {
		out = append(out,
			fixtureRow{f.name, f.fixture, tensor.ReduceAll(), quarter},
			fixtureRow{f.name, f.fixture, tensor.Axis(0), half},
			fixtureRow{f.name, f.fixture, tensor.Axis(1), half},
			fixtureRow{f.name, f.fixture, tensor.Axes(0, 1), quarter},
		)
	}
	return out
}

// Cases returns the full static table: every fixture/axis row crossed
// with every sharing protocol, 18 cases in a fixed order.
func Cases() []Case {
	return CasesFor(SharingProtocols)
}

// CasesFor crosses the fixture rows with the given protocols.
func CasesFor(protocols []string) []Case {
	var out []Case
	for _, p := range protocols {
		for _, r := range rows() {
			out = append(out, Case{
				Name:     fmt.Sprintf("%s/axis=%s/%s", r.name, r.axis, p),
				Fixture:  r.fixture,
				Axis:     r.axis,
				Expected: r.expected,
				Protocol: p,
			})
		}
	}
	return out
}
