// Copyright 2025 tensorcore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tensorcore

import (
	"github.com/tvmgo/tensorcore/compute"
	"github.com/tvmgo/tensorcore/tir"
)

// scheduleFacts is what Stage 2 publishes: role/layout maps keyed by
// simplified buffer name, and the mma_sync map normalized so A always
// precedes B.
type scheduleFacts struct {
	ok      bool
	role    map[string]string
	layout  map[string]string
	mmaSync map[*tir.ProducerStore]mmaSyncOperands
}

// bodyVisitor scans one compute op's body for the canonical
// Reduce(Add, Mul(...)) accumulation pattern and records every
// ProducerLoad it encounters along the way.
type bodyVisitor struct {
	accumulatorDType tir.DataType
	isCandidate      bool
	loads            map[string][]tir.Expr
}

func newBodyVisitor(accDType tir.DataType) *bodyVisitor {
	return &bodyVisitor{accumulatorDType: accDType, loads: make(map[string][]tir.Expr)}
}

func (bv *bodyVisitor) visit(e tir.Expr) {
	switch n := e.(type) {
	case *tir.Reduce:
		if len(n.Combiner.Result) == 1 {
			if _, ok := n.Combiner.Result[0].(*tir.Add); ok {
				for _, src := range n.Source {
					bv.visitReduceSource(src)
				}
			}
		}
	case *tir.Add:
		bv.visit(n.A)
		bv.visit(n.B)
	case *tir.Sub:
		bv.visit(n.A)
		bv.visit(n.B)
	case *tir.Mul:
		bv.visit(n.A)
		bv.visit(n.B)
	case *tir.Div:
		bv.visit(n.A)
		bv.visit(n.B)
	case *tir.Mod:
		bv.visit(n.A)
		bv.visit(n.B)
	case *tir.Cast:
		bv.visit(n.Value)
	case *tir.Call:
		for _, a := range n.Args {
			bv.visit(a)
		}
	case *tir.ProducerLoad:
		name := simplifyName(n.Producer.Name)
		bv.loads[name] = n.Indices
	}
}

// visitReduceSource marks the compute as a candidate when the (optionally
// cast) source is a Mul, and records every load reachable under it.
func (bv *bodyVisitor) visitReduceSource(src tir.Expr) {
	inner := src
	if cast, ok := src.(*tir.Cast); ok && cast.T == bv.accumulatorDType {
		inner = cast.Value
	}
	if _, ok := inner.(*tir.Mul); ok {
		bv.isCandidate = true
	}
	bv.visit(inner)
}

func exprVar(e tir.Expr) (*tir.Var, bool) {
	v, ok := e.(*tir.Var)
	return v, ok
}

// classifyLoad applies the (var0,var1) classification table to one
// loaded tensor's innermost two indices.
func classifyLoad(indices []tir.Expr, reduceVar, outerVar, innerVar *tir.Var) (role, layout string, ok bool) {
	if len(indices) < 2 {
		return "", "", false
	}
	v0, ok0 := exprVar(indices[len(indices)-2])
	v1, ok1 := exprVar(indices[len(indices)-1])
	if !ok0 || !ok1 {
		return "", "", false
	}
	switch {
	case v0 == reduceVar && v1 == innerVar:
		return tir.RoleMatrixA, tir.LayoutColMajor, true
	case v0 == reduceVar && v1 == outerVar:
		return tir.RoleMatrixB, tir.LayoutRowMajor, true
	case v0 == innerVar && v1 == reduceVar:
		return tir.RoleMatrixA, tir.LayoutRowMajor, true
	case v0 == outerVar && v1 == reduceVar:
		return tir.RoleMatrixB, tir.LayoutColMajor, true
	default:
		return "", "", false
	}
}

// ClassifyRolesAndLayouts is stage 2's MatrixIdentify: for every output
// compute with a tensor-core candidate reduction, classify each loaded
// operand's role and layout and label the output itself the accumulator.
func ClassifyRolesAndLayouts(sch *compute.Schedule, accDType tir.DataType) (role, layout map[string]string) {
	role = make(map[string]string)
	layout = make(map[string]string)

	for _, op := range sch.Outputs {
		if len(op.Axis) < 2 || len(op.ReduceAxis) != 1 {
			continue
		}
		bv := newBodyVisitor(accDType)
		for _, b := range op.Body {
			bv.visit(b)
		}
		if !bv.isCandidate {
			continue
		}

		// The accumulator is unconditionally col_major in the original;
		// layout is only ever consulted for inputs, so this is harmless.
		role[simplifyName(op.Name)] = tir.RoleAccumulator
		layout[simplifyName(op.Name)] = tir.LayoutColMajor

		reduceVar := op.ReduceAxis[0].Var
		outerVar := op.Axis[len(op.Axis)-2].Var
		innerVar := op.Axis[len(op.Axis)-1].Var

		for name, indices := range bv.loads {
			r, l, ok := classifyLoad(indices, reduceVar, outerVar, innerVar)
			if !ok {
				continue
			}
			role[name] = r
			layout[name] = l
		}
	}
	return role, layout
}

// normalizeOperandOrder canonicalizes every mma_sync entry so the
// matrix_a operand is always A, and reports whether every entry
// classified cleanly into one matrix_a and one matrix_b.
func normalizeOperandOrder(mmaSync map[*tir.ProducerStore]mmaSyncOperands, role map[string]string) (map[*tir.ProducerStore]mmaSyncOperands, bool) {
	out := make(map[*tir.ProducerStore]mmaSyncOperands, len(mmaSync))
	for store, ops := range mmaSync {
		nameA := loadName(ops.A)
		nameB := loadName(ops.B)
		roleA := role[nameA]
		roleB := role[nameB]

		switch {
		case roleA == tir.RoleMatrixA && roleB == tir.RoleMatrixB:
			out[store] = ops
		case roleA == tir.RoleMatrixB && roleB == tir.RoleMatrixA:
			out[store] = mmaSyncOperands{A: ops.B, B: ops.A, C: ops.C}
		default:
			return nil, false
		}
	}
	return out, true
}

func loadName(e tir.Expr) string {
	load, ok := e.(*tir.ProducerLoad)
	if !ok {
		return ""
	}
	return simplifyName(load.Producer.Name)
}

// RunScheduleAnalyser drives stage 2 end to end: classify from the
// schedule, then normalize the matched stores against that
// classification. ok is false on any abort condition.
func RunScheduleAnalyser(sch *compute.Schedule, accDType tir.DataType, mmaSync map[*tir.ProducerStore]mmaSyncOperands) scheduleFacts {
	role, layout := ClassifyRolesAndLayouts(sch, accDType)
	normalized, ok := normalizeOperandOrder(mmaSync, role)
	if !ok {
		return scheduleFacts{ok: false}
	}
	return scheduleFacts{ok: true, role: role, layout: layout, mmaSync: normalized}
}
