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

import "github.com/tvmgo/tensorcore/tir"

// mmaSyncOperands is the canonical (A, B, C) expression triple recorded
// for one matched store, before ScheduleAnalyser has had a chance to
// canonicalize A/B order.
type mmaSyncOperands struct {
	A, B, C tir.Expr
}

// matchFacts is everything Matcher publishes for ScheduleAnalyser and
// BufferAnalyser to borrow: the matched stores, the fragment name set,
// and which load node produced which buffer name (needed to resolve A/B
// role by name once ScheduleAnalyser has classified names).
type matchFacts struct {
	matched  bool
	mmaSync  map[*tir.ProducerStore]mmaSyncOperands
	fragReg  map[string]bool
	bufName  map[*tir.ProducerLoad]string
}

// Matcher is stage 1: MMAMatcher. It walks the IR looking for
// store(T, idx, Add(load(T, idx), Mul(cast(A), cast(B)))) under an active
// pragma_tensor_core region, on buffers it has observed to be storage
// scope "local".
type Matcher struct {
	bufMap       map[*tir.Tensor]matchBufferInfo
	storageScope map[*tir.Tensor]string
	tensorCoreOn bool

	facts matchFacts
}

// NewMatcher seeds the matcher with the caller-supplied external buffers,
// exactly as MMAMatcher's constructor seeds buf_map_ from extern_buffer.
func NewMatcher(externBuffers map[*tir.Tensor]ExternBuffer) *Matcher {
	m := &Matcher{
		bufMap:       make(map[*tir.Tensor]matchBufferInfo),
		storageScope: make(map[*tir.Tensor]string),
		facts: matchFacts{
			mmaSync: make(map[*tir.ProducerStore]mmaSyncOperands),
			fragReg: make(map[string]bool),
			bufName: make(map[*tir.ProducerLoad]string),
		},
	}
	for t, eb := range externBuffers {
		m.bufMap[t] = matchBufferInfo{name: eb.Name, dtype: eb.DType, external: true}
	}
	return m
}

// Run walks stmt and returns the published facts. An unmatched IR
// simply comes back with matched=false, never an error.
func (m *Matcher) Run(stmt tir.Stmt) matchFacts {
	m.visitStmt(stmt)
	return m.facts
}

func (m *Matcher) visitStmt(s tir.Stmt) {
	switch n := s.(type) {
	case *tir.AttrStmt:
		switch n.Key {
		case tir.AttrPragmaTensorCore:
			prev := m.tensorCoreOn
			m.tensorCoreOn = true
			m.visitStmt(n.Body)
			m.tensorCoreOn = prev
		case tir.AttrRealizeScope:
			if tensor, ok := n.Node.(*tir.Tensor); ok {
				if sv, ok := n.Value.(*tir.StringImm); ok {
					m.storageScope[tensor] = sv.Value
				}
			}
			m.visitStmt(n.Body)
		default:
			m.visitStmt(n.Body)
		}
	case *tir.ProducerRealize:
		m.visitRealize(n)
	case *tir.ProducerStore:
		m.visitStore(n)
	case *tir.For:
		m.visitStmt(n.Body)
	case *tir.SeqStmt:
		for _, c := range n.Stmts {
			m.visitStmt(c)
		}
	case *tir.Evaluate, nil:
		// no children
	}
}

func (m *Matcher) visitRealize(op *tir.ProducerRealize) {
	if bi, ok := m.bufMap[op.Producer]; ok {
		if !bi.external {
			return
		}
		m.visitStmt(op.Body)
		return
	}
	m.bufMap[op.Producer] = matchBufferInfo{name: op.Producer.Name, dtype: op.Producer.DType}
	m.visitStmt(op.Body)
	bi := m.bufMap[op.Producer]
	bi.released = true
	m.bufMap[op.Producer] = bi
}

func (m *Matcher) visitStore(op *tir.ProducerStore) {
	bi, ok := m.bufMap[op.Producer]
	if !ok || bi.released {
		return
	}
	if m.tensorCoreOn && m.tryMatchMMASync(op, bi) {
		m.facts.matched = true
	}
}

// checkLocalBuffer reports whether load reads a buffer this matcher has
// recorded as storage scope "local" and still in scope, returning its
// BufferInfo.
func (m *Matcher) checkLocalBuffer(load *tir.ProducerLoad) (matchBufferInfo, bool) {
	if load == nil {
		return matchBufferInfo{}, false
	}
	scope, ok := m.storageScope[load.Producer]
	if !ok || scope != tir.ScopeLocal {
		return matchBufferInfo{}, false
	}
	bi, ok := m.bufMap[load.Producer]
	if !ok || bi.released {
		return matchBufferInfo{}, false
	}
	return bi, true
}

// unpackTypeCast looks through a Cast node iff its target dtype equals
// target; otherwise it is not the cast the pattern expects and this
// returns nil, matching the original's unpack_type_cast returning an
// undefined PrimExpr on mismatch (treated by its caller as a failed
// match).
func unpackTypeCast(e tir.Expr, target tir.DataType) tir.Expr {
	cast, ok := e.(*tir.Cast)
	if !ok {
		return e
	}
	if cast.T == target {
		return cast.Value
	}
	return nil
}

// tryMatchMMASync implements mma_sync_match_: tests whether op's value is
// Add(load(C), Mul(cast(A), cast(B))) on in-scope local buffers with
// admissible dtypes.
func (m *Matcher) tryMatchMMASync(op *tir.ProducerStore, storeBuffer matchBufferInfo) bool {
	add, ok := op.Value.(*tir.Add)
	if !ok {
		return false
	}

	loadC, _ := add.A.(*tir.ProducerLoad)
	bufferC, ok := m.checkLocalBuffer(loadC)
	if !ok || !bufferC.sameAs(storeBuffer) || !bufferC.dtype.IsAccumulatorDType() {
		return false
	}

	mulExpr := unpackTypeCast(add.B, bufferC.dtype)
	if mulExpr == nil {
		return false
	}
	mul, ok := mulExpr.(*tir.Mul)
	if !ok {
		return false
	}

	loadAExpr := unpackTypeCast(mul.A, bufferC.dtype)
	if loadAExpr == nil {
		return false
	}
	loadA, _ := loadAExpr.(*tir.ProducerLoad)
	bufferA, ok := m.checkLocalBuffer(loadA)
	if !ok || !bufferA.dtype.IsOperandDType() {
		return false
	}

	loadBExpr := unpackTypeCast(mul.B, bufferC.dtype)
	if loadBExpr == nil {
		return false
	}
	loadB, _ := loadBExpr.(*tir.ProducerLoad)
	bufferB, ok := m.checkLocalBuffer(loadB)
	// NOTE: the original tests buffer_a.dtype for UInt(4)/Int(1) in this
	// final arm where buffer_b.dtype was clearly intended. This
	// implementation checks bufferB throughout, treating the original as
	// buggy.
	if !ok || !bufferB.dtype.IsOperandDType() {
		return false
	}

	m.facts.fragReg[bufferC.name] = true
	m.facts.fragReg[bufferA.name] = true
	m.facts.fragReg[bufferB.name] = true
	m.facts.bufName[loadA] = bufferA.name
	m.facts.bufName[loadB] = bufferB.name
	m.facts.mmaSync[op] = mmaSyncOperands{A: loadAExpr, B: loadBExpr, C: add.A}

	return true
}
