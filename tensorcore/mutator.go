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
	"fmt"

	"github.com/tvmgo/tensorcore/tir"
)

// bufferBindNode is the AttrStmt.Node payload for a buffer_bind_scope
// annotation: the (buffer, tensor) pair it binds.
type bufferBindNode struct {
	Buffer *tir.Buffer
	Tensor *tir.Tensor
}

// Mutator is stage 4: TensorCoreIRMutator. It rebuilds the IR bottom-up,
// replacing every matched store/realize/attr node with its fragment
// equivalent using the role/layout/tile facts the previous three stages
// published.
type Mutator struct {
	role    map[string]string
	layout  map[string]string
	fragReg map[string]bool
	mmaSync map[*tir.ProducerStore]mmaSyncOperands
	buffers map[string]analysisBufferInfo

	warpTile  Tile
	threadExt map[string]int64
	loopScale map[*tir.Var]int64

	fresh int
}

func NewMutator(match matchFacts, sched scheduleFacts, buf bufferFacts) *Mutator {
	return &Mutator{
		role:      sched.role,
		layout:    sched.layout,
		fragReg:   match.fragReg,
		mmaSync:   sched.mmaSync,
		buffers:   buf.buffers,
		warpTile:  buf.warpTile,
		threadExt: buf.threadExtent,
		loopScale: buf.loopScaling,
	}
}

func (mu *Mutator) warpY() int64 {
	tx := mu.threadExt["threadIdx.x"]
	if tx == 0 {
		return 1
	}
	return 32 / tx
}

func (mu *Mutator) Run(stmt tir.Stmt) tir.Stmt {
	return mu.mutateStmt(stmt)
}

// mutateStmt recurses into s's children via tir.MapChildren, then applies
// this node's own rewrite on top of the already-rebuilt children —
// StmtExprMutator::VisitStmt_'s children-first, node-second order.
func (mu *Mutator) mutateStmt(s tir.Stmt) tir.Stmt {
	rebuilt := tir.MapChildren(s, mu.mutateStmt)
	switch n := rebuilt.(type) {
	case *tir.AttrStmt:
		return mu.mutateAttr(n, n.Body)
	case *tir.ProducerRealize:
		return mu.mutateRealize(n, n.Body)
	case *tir.ProducerStore:
		return mu.mutateStore(n)
	case *tir.For:
		return mu.mutateFor(n, n.Body)
	default:
		return rebuilt
	}
}

func (mu *Mutator) mutateAttr(n *tir.AttrStmt, body tir.Stmt) tir.Stmt {
	if n.Key == tir.AttrRealizeScope {
		if tensor, ok := n.Node.(*tir.Tensor); ok {
			name := simplifyName(tensor.Name)
			if mu.fragReg[name] {
				return tir.NewAttrStmt(n.Key, n.Node, tir.NewStringImm(tir.WMMAScope(mu.role[name])), body)
			}
		}
	}
	return tir.NewAttrStmt(n.Key, n.Node, n.Value, body)
}

// mutateRealize narrows a fragment tensor's innermost two bounds to the
// warp-tile extents; outer bounds pass through unchanged.
func (mu *Mutator) mutateRealize(n *tir.ProducerRealize, body tir.Stmt) tir.Stmt {
	name := simplifyName(n.Producer.Name)
	if !mu.fragReg[name] || len(n.Bounds) < 2 {
		return tir.NewProducerRealize(n.Producer, n.Bounds, n.Condition, body)
	}
	tile0, tile1 := mu.warpTileDims(name)
	bounds := make([]tir.Range, len(n.Bounds))
	copy(bounds, n.Bounds)
	last := len(bounds) - 1
	bounds[last-1] = tir.RangeFromMinExtent(bounds[last-1].Min, tir.NewIntImm(tir.Int32(), int64(tile0)))
	bounds[last] = tir.RangeFromMinExtent(bounds[last].Min, tir.NewIntImm(tir.Int32(), int64(tile1)))
	return tir.NewProducerRealize(n.Producer, bounds, n.Condition, body)
}

// warpTileDims reads the warp-tile's two slots for name's (role, layout)
// using the same slot table buffer.go's recordThreadTileFromShape writes
// thread-tile values into, reused here at warp granularity for the
// realize/buffer-shape rewrite.
func (mu *Mutator) warpTileDims(name string) (int, int) {
	t := mu.warpTile
	slots, ok := tileSlots(&t, mu.role[name], mu.layout[name])
	if !ok {
		return 0, 0
	}
	return *slots.slot0, *slots.slot1
}

func (mu *Mutator) mutateFor(n *tir.For, body tir.Stmt) tir.Stmt {
	factor, ok := mu.loopScale[n.Var]
	if !ok || factor == 0 {
		return tir.NewFor(n.Var, n.Min, n.Extent, n.Kind, body, n.ThreadBinding)
	}
	lit, ok := tir.AsLiteralInt(n.Extent)
	if !ok {
		return tir.NewFor(n.Var, n.Min, n.Extent, n.Kind, body, n.ThreadBinding)
	}
	return tir.NewFor(n.Var, n.Min, tir.NewIntImm(n.Extent.DType(), lit/factor), n.Kind, body, n.ThreadBinding)
}

func (mu *Mutator) mutateStore(n *tir.ProducerStore) tir.Stmt {
	if ops, ok := mu.mmaSync[n]; ok {
		return mu.emitMMASync(n, ops)
	}
	name := simplifyName(n.Producer.Name)
	if mu.fragReg[name] {
		return mu.emitFragLoad(n, name)
	}
	if load, ok := n.Value.(*tir.ProducerLoad); ok {
		if mu.fragReg[simplifyName(load.Producer.Name)] {
			return mu.emitFragStore(n, load)
		}
	}
	return n
}

// emitMMASync builds the three buffer binds and the mma_sync/bmma_sync
// call, nested A outside B outside C outside the Evaluate. Argument
// order follows the original's 8-argument convention.
func (mu *Mutator) emitMMASync(store *tir.ProducerStore, ops mmaSyncOperands) tir.Stmt {
	loadA := ops.A.(*tir.ProducerLoad)
	loadB := ops.B.(*tir.ProducerLoad)
	nameA := simplifyName(loadA.Producer.Name)
	nameB := simplifyName(loadB.Producer.Name)
	nameC := simplifyName(store.Producer.Name)

	bufA := mu.buildBuffer(nameA, loadA.Indices)
	bufB := mu.buildBuffer(nameB, loadB.Indices)
	bufC := mu.buildBuffer(nameC, store.Indices)

	intrinsic := tir.BuiltinMMASync
	if mu.buffers[nameA].dtype == tir.Int1() && mu.buffers[nameB].dtype == tir.Int1() {
		intrinsic = tir.BuiltinBMMASync
	}

	call := tir.NewCall(tir.HandleType(), intrinsic,
		bufC.Data, bufC.ElemOffset,
		bufA.Data, bufA.ElemOffset,
		bufB.Data, bufB.ElemOffset,
		bufC.Data, bufC.ElemOffset,
	)

	inner := tir.Stmt(tir.NewEvaluate(call))
	inner = mu.wrapBufferBindScope(bufC, store.Producer, store.Indices, inner)
	inner = mu.wrapBufferBindScope(bufB, loadB.Producer, loadB.Indices, inner)
	inner = mu.wrapBufferBindScope(bufA, loadA.Producer, loadA.Indices, inner)
	return inner
}

// emitFragLoad handles a ProducerStore into a fragment buffer that is not
// part of an mma_sync match: either a constant initializer (fill_fragment)
// or a copy from a non-fragment memory buffer (load_matrix_sync).
func (mu *Mutator) emitFragLoad(store *tir.ProducerStore, name string) tir.Stmt {
	buf := mu.buildBuffer(name, store.Indices)

	switch store.Value.(type) {
	case *tir.IntImm, *tir.FloatImm:
		call := tir.NewCall(tir.HandleType(), tir.BuiltinFillFragment,
			buf.Data,
			tir.NewIntImm(tir.Int32(), int64(mu.warpTile.M)),
			tir.NewIntImm(tir.Int32(), int64(mu.warpTile.N)),
			tir.NewIntImm(tir.Int32(), int64(mu.warpTile.K)),
			buf.ElemOffset,
			store.Value,
		)
		return mu.wrapBufferBindScope(buf, store.Producer, store.Indices, tir.NewEvaluate(call))
	}

	load, ok := store.Value.(*tir.ProducerLoad)
	if !ok {
		assertf(false, "mutator", "frag_load store %q has neither a constant nor a memory-load value", name)
	}
	srcName := simplifyName(load.Producer.Name)
	strides := mu.buffers[srcName].strides
	assertf(len(strides) >= 2, "mutator", "buffer %q has no recorded stride for load_matrix_sync", srcName)
	leadDim := strides[len(strides)-2]

	addr := tir.NewCall(tir.HandleType(), tir.BuiltinCallExtern, tir.NewStringImm("&"), mu.threadIdxMutate(load))
	call := tir.NewCall(tir.HandleType(), tir.BuiltinLoadMatrixSync,
		buf.Data,
		tir.NewIntImm(tir.Int32(), int64(mu.warpTile.M)),
		tir.NewIntImm(tir.Int32(), int64(mu.warpTile.N)),
		tir.NewIntImm(tir.Int32(), int64(mu.warpTile.K)),
		buf.ElemOffset,
		addr,
		leadDim,
		tir.NewStringImm(mu.layout[name]),
	)
	return mu.wrapBufferBindScope(buf, store.Producer, store.Indices, tir.NewEvaluate(call))
}

// emitFragStore mirrors emitFragLoad's memory-copy case: a store into a
// non-fragment buffer whose value is a load from a fragment, rewritten to
// store_matrix_sync. The accumulator's write-back layout is always
// col_major, matching its unconditional col_major classification.
func (mu *Mutator) emitFragStore(store *tir.ProducerStore, load *tir.ProducerLoad) tir.Stmt {
	name := simplifyName(load.Producer.Name)
	buf := mu.buildBuffer(name, load.Indices)

	dstName := simplifyName(store.Producer.Name)
	strides := mu.buffers[dstName].strides
	assertf(len(strides) >= 2, "mutator", "buffer %q has no recorded stride for store_matrix_sync", dstName)
	leadDim := strides[len(strides)-2]

	dstAddr := tir.NewProducerLoad(store.Producer, store.Indices)
	addr := tir.NewCall(tir.HandleType(), tir.BuiltinCallExtern, tir.NewStringImm("&"), mu.threadIdxMutate(dstAddr))
	call := tir.NewCall(tir.HandleType(), tir.BuiltinStoreMatrixSync,
		buf.Data,
		tir.NewIntImm(tir.Int32(), int64(mu.warpTile.M)),
		tir.NewIntImm(tir.Int32(), int64(mu.warpTile.N)),
		tir.NewIntImm(tir.Int32(), int64(mu.warpTile.K)),
		buf.ElemOffset,
		addr,
		leadDim,
		tir.NewStringImm(tir.LayoutColMajor),
	)
	return mu.wrapBufferBindScope(buf, load.Producer, load.Indices, tir.NewEvaluate(call))
}

// buildBuffer constructs a fresh wmma.<role> buffer record for one
// fragment access: outer dims taken verbatim from the tensor's recorded
// shape, innermost two dims replaced by the warp-tile slots, strides as
// running right-to-left products, elem_offset from the realize-relative
// indices.
func (mu *Mutator) buildBuffer(name string, indices []tir.Expr) tir.Buffer {
	bi := mu.buffers[name]
	tile0, tile1 := mu.warpTileDims(name)

	var shape []tir.Expr
	if len(bi.shape) >= 2 {
		shape = append(shape, bi.shape[:len(bi.shape)-2]...)
	}
	shape = append(shape, tir.NewIntImm(tir.Int32(), int64(tile0)), tir.NewIntImm(tir.Int32(), int64(tile1)))

	strides := make([]tir.Expr, len(shape))
	acc := tir.Expr(tir.NewIntImm(tir.Int32(), 1))
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc = tir.Simplify(tir.NewMul(acc, shape[i]))
	}

	rel := bi.relIndex(indices)
	offset := tir.Expr(tir.NewIntImm(tir.Int32(), 0))
	for i := 0; i < len(rel) && i < len(strides); i++ {
		offset = tir.NewAdd(offset, tir.NewMul(strides[i], rel[i]))
	}
	offset = tir.Simplify(offset)

	mu.fresh++
	data := tir.NewVar(fmt.Sprintf("%s.frag%d", name, mu.fresh), tir.HandleType())

	return tir.Buffer{
		Data:          data,
		Name:          name,
		Scope:         tir.WMMAScope(mu.role[name]),
		DType:         bi.dtype,
		Strides:       strides,
		Shape:         shape,
		DataAlignment: 1,
		ElemOffset:    offset,
		OffsetFactor:  1,
	}
}

// wrapBufferBindScope builds the buffer_bind_scope AttrStmt required
// around every fragment access: node (buffer, tensor), value
// tvm_tuple(index0, shape0, index1, shape1, ...).
func (mu *Mutator) wrapBufferBindScope(buf tir.Buffer, tensor *tir.Tensor, indices []tir.Expr, body tir.Stmt) tir.Stmt {
	n := len(indices)
	if len(buf.Shape) < n {
		n = len(buf.Shape)
	}
	args := make([]tir.Expr, 0, n*2)
	for i := 0; i < n; i++ {
		args = append(args, indices[i], buf.Shape[i])
	}
	value := tir.NewCall(tir.HandleType(), tir.BuiltinTVMTuple, args...)
	bufCopy := buf
	node := bufferBindNode{Buffer: &bufCopy, Tensor: tensor}
	return tir.NewAttrStmt(tir.AttrBufferBindScope, node, value, body)
}

// threadIdxMutate substitutes threadIdx.x with 0 and threadIdx.y with
// (threadIdx.y / warp_y) * warp_y, canonicalizing a per-thread address
// expression down to its warp's first thread.
func (mu *Mutator) threadIdxMutate(e tir.Expr) tir.Expr {
	warpY := mu.warpY()
	var rec func(tir.Expr) tir.Expr
	rec = func(e tir.Expr) tir.Expr {
		switch n := e.(type) {
		case *tir.Var:
			switch n.Name {
			case "threadIdx.x":
				return tir.NewIntImm(n.T, 0)
			case "threadIdx.y":
				wy := tir.NewIntImm(n.T, warpY)
				return tir.NewMul(tir.NewDiv(n, wy), wy)
			default:
				return n
			}
		case *tir.Add:
			return tir.NewAdd(rec(n.A), rec(n.B))
		case *tir.Sub:
			return tir.NewSub(rec(n.A), rec(n.B))
		case *tir.Mul:
			return tir.NewMul(rec(n.A), rec(n.B))
		case *tir.Div:
			return tir.NewDiv(rec(n.A), rec(n.B))
		case *tir.Mod:
			return tir.NewMod(rec(n.A), rec(n.B))
		case *tir.Cast:
			return tir.NewCast(n.T, rec(n.Value))
		case *tir.ProducerLoad:
			idx := make([]tir.Expr, len(n.Indices))
			for i, ix := range n.Indices {
				idx[i] = rec(ix)
			}
			return tir.NewProducerLoad(n.Producer, idx)
		case *tir.Call:
			args := make([]tir.Expr, len(n.Args))
			for i, a := range n.Args {
				args[i] = rec(a)
			}
			return tir.NewCall(n.T, n.Op, args...)
		default:
			return e
		}
	}
	return tir.Simplify(rec(e))
}
