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
	"testing"

	"github.com/tvmgo/tensorcore/tir"
)

// buildLocalRealize wraps body in the realize_scope("local") + realize
// bookkeeping the matcher needs to consider a tensor in scope.
func buildLocalRealize(t *tir.Tensor, shape []int64, body tir.Stmt) tir.Stmt {
	bounds := make([]tir.Range, len(shape))
	for i, s := range shape {
		bounds[i] = tir.RangeFromMinExtent(tir.NewIntImm(tir.Int32(), 0), tir.NewIntImm(tir.Int32(), s))
	}
	scoped := tir.NewAttrStmt(tir.AttrRealizeScope, t, tir.NewStringImm(tir.ScopeLocal), body)
	return tir.NewProducerRealize(t, bounds, tir.NewIntImm(tir.Int32(), 1), scoped)
}

func buildGEMMStore(a, b, c *tir.Tensor, ia, ib, ic []tir.Expr) *tir.ProducerStore {
	accDType := c.DType
	loadC := tir.NewProducerLoad(c, ic)
	loadA := tir.NewProducerLoad(a, ia)
	loadB := tir.NewProducerLoad(b, ib)
	mul := tir.NewMul(tir.NewCast(accDType, loadA), tir.NewCast(accDType, loadB))
	value := tir.NewAdd(loadC, mul)
	return tir.NewProducerStore(c, value, ic)
}

func wrapPragma(body tir.Stmt) tir.Stmt {
	return tir.NewAttrStmt(tir.AttrPragmaTensorCore, nil, tir.NewIntImm(tir.Int32(), 1), body)
}

func TestMatcherFindsCanonicalMMAPattern(t *testing.T) {
	a := tir.NewTensor("A", tir.Float16())
	b := tir.NewTensor("B", tir.Float16())
	c := tir.NewTensor("C", tir.Float32())
	i, j, k := tir.NewVar("i", tir.Int32()), tir.NewVar("j", tir.Int32()), tir.NewVar("k", tir.Int32())

	store := buildGEMMStore(a, b, c, []tir.Expr{k, j}, []tir.Expr{k, i}, []tir.Expr{i, j})

	ir := buildLocalRealize(a, []int64{16, 16},
		buildLocalRealize(b, []int64{16, 16},
			buildLocalRealize(c, []int64{16, 16}, store)))
	ir = wrapPragma(ir)

	m := NewMatcher(nil)
	facts := m.Run(ir)

	if !facts.matched {
		t.Fatalf("expected a match, got none")
	}
	if len(facts.fragReg) != 3 {
		t.Fatalf("expected 3 fragment names, got %d: %v", len(facts.fragReg), facts.fragReg)
	}
	for _, name := range []string{"A", "B", "C"} {
		if !facts.fragReg[name] {
			t.Errorf("expected %q in fragReg", name)
		}
	}
	if len(facts.mmaSync) != 1 {
		t.Fatalf("expected exactly one mma_sync entry, got %d", len(facts.mmaSync))
	}
}

func TestMatcherRejectsWithoutPragma(t *testing.T) {
	a := tir.NewTensor("A", tir.Float16())
	b := tir.NewTensor("B", tir.Float16())
	c := tir.NewTensor("C", tir.Float32())
	i, j, k := tir.NewVar("i", tir.Int32()), tir.NewVar("j", tir.Int32()), tir.NewVar("k", tir.Int32())
	store := buildGEMMStore(a, b, c, []tir.Expr{k, j}, []tir.Expr{k, i}, []tir.Expr{i, j})

	ir := buildLocalRealize(a, []int64{16, 16},
		buildLocalRealize(b, []int64{16, 16},
			buildLocalRealize(c, []int64{16, 16}, store)))

	m := NewMatcher(nil)
	facts := m.Run(ir)
	if facts.matched {
		t.Fatalf("expected no match outside a pragma_tensor_core region")
	}
}

func TestMatcherRejectsNonLocalBuffer(t *testing.T) {
	a := tir.NewTensor("A", tir.Float16())
	b := tir.NewTensor("B", tir.Float16())
	c := tir.NewTensor("C", tir.Float32())
	i, j, k := tir.NewVar("i", tir.Int32()), tir.NewVar("j", tir.Int32()), tir.NewVar("k", tir.Int32())
	store := buildGEMMStore(a, b, c, []tir.Expr{k, j}, []tir.Expr{k, i}, []tir.Expr{i, j})

	// C's realize never gets a realize_scope("local") attribute.
	bounds := []tir.Range{
		tir.RangeFromMinExtent(tir.NewIntImm(tir.Int32(), 0), tir.NewIntImm(tir.Int32(), 16)),
		tir.RangeFromMinExtent(tir.NewIntImm(tir.Int32(), 0), tir.NewIntImm(tir.Int32(), 16)),
	}
	cRealize := tir.NewProducerRealize(c, bounds, tir.NewIntImm(tir.Int32(), 1), store)

	ir := buildLocalRealize(a, []int64{16, 16}, buildLocalRealize(b, []int64{16, 16}, cRealize))
	ir = wrapPragma(ir)

	m := NewMatcher(nil)
	facts := m.Run(ir)
	if facts.matched {
		t.Fatalf("expected no match when the accumulator is not scoped local")
	}
}

func TestUnpackTypeCastLooksThroughMatchingCast(t *testing.T) {
	v := tir.NewVar("x", tir.Float16())
	cast := tir.NewCast(tir.Float32(), v)
	if got := unpackTypeCast(cast, tir.Float32()); got != v {
		t.Fatalf("expected cast to be unwrapped to underlying var")
	}
	if got := unpackTypeCast(cast, tir.Int32()); got != nil {
		t.Fatalf("expected mismatched cast target to fail, got %v", got)
	}
	if got := unpackTypeCast(v, tir.Float32()); got != v {
		t.Fatalf("expected a non-cast expression to pass through unchanged")
	}
}

func TestMatchBufferInfoSameAs(t *testing.T) {
	a := matchBufferInfo{name: "A", dtype: tir.Float16()}
	b := matchBufferInfo{name: "A", dtype: tir.Float16()}
	c := matchBufferInfo{name: "A", dtype: tir.Float32()}
	if !a.sameAs(b) {
		t.Fatalf("expected identical BufferInfo values to compare equal")
	}
	if a.sameAs(c) {
		t.Fatalf("expected differing dtype to compare unequal")
	}
}
