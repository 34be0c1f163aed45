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

package tir

// Simplify is the stand-in for the host compiler's arith::Analyzer,
// exposing the simplify(expr) -> expr surface this pass depends on as an
// external service. It performs the constant folding the pass actually
// relies on: collapsing IntImm arithmetic, and the identity reductions
// (x+0, x*1, x*0, x/1) that keep elem_offset and stride expressions from
// growing unboundedly across repeated rewrites. It is not a general
// arithmetic simplifier or a CAS.
func Simplify(e Expr) Expr {
	switch n := e.(type) {
	case *Add:
		a, b := Simplify(n.A), Simplify(n.B)
		if ai, ok := asInt(a); ok {
			if bi, ok := asInt(b); ok {
				return NewIntImm(n.DType(), ai+bi)
			}
			if ai == 0 {
				return b
			}
		}
		if bi, ok := asInt(b); ok && bi == 0 {
			return a
		}
		return NewAdd(a, b)
	case *Sub:
		a, b := Simplify(n.A), Simplify(n.B)
		if ai, ok := asInt(a); ok {
			if bi, ok := asInt(b); ok {
				return NewIntImm(n.DType(), ai-bi)
			}
		}
		if bi, ok := asInt(b); ok && bi == 0 {
			return a
		}
		return NewSub(a, b)
	case *Mul:
		a, b := Simplify(n.A), Simplify(n.B)
		if ai, ok := asInt(a); ok {
			if bi, ok := asInt(b); ok {
				return NewIntImm(n.DType(), ai*bi)
			}
			if ai == 0 {
				return NewIntImm(n.DType(), 0)
			}
			if ai == 1 {
				return b
			}
		}
		if bi, ok := asInt(b); ok {
			if bi == 0 {
				return NewIntImm(n.DType(), 0)
			}
			if bi == 1 {
				return a
			}
		}
		return NewMul(a, b)
	case *Div:
		a, b := Simplify(n.A), Simplify(n.B)
		if ai, ok := asInt(a); ok {
			if bi, ok := asInt(b); ok && bi != 0 {
				return NewIntImm(n.DType(), ai/bi)
			}
		}
		if bi, ok := asInt(b); ok && bi == 1 {
			return a
		}
		return NewDiv(a, b)
	case *Mod:
		a, b := Simplify(n.A), Simplify(n.B)
		if ai, ok := asInt(a); ok {
			if bi, ok := asInt(b); ok && bi != 0 {
				return NewIntImm(n.DType(), ((ai%bi)+bi)%bi)
			}
		}
		return NewMod(a, b)
	case *Cast:
		v := Simplify(n.Value)
		if vi, ok := asInt(v); ok {
			return NewIntImm(n.T, vi)
		}
		return NewCast(n.T, v)
	default:
		return e
	}
}

func asInt(e Expr) (int64, bool) {
	if im, ok := e.(*IntImm); ok {
		return im.Value, true
	}
	return 0, false
}

// AsLiteralInt returns the integer value of e if Simplify(e) folds to an
// IntImm, matching the original's repeated `.as<IntImmNode>()` checks on
// simplified shapes/extents.
func AsLiteralInt(e Expr) (int64, bool) {
	return asInt(Simplify(e))
}
