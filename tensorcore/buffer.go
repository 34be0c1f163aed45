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

// threadTileSlot is where the innermost two shape dimensions of one
// fragment buffer land in its (m,n,k) thread-tile, keyed by (role,
// layout). slot0 is the second-innermost dimension, slot1 the innermost.
type threadTileSlot struct{ slot0, slot1 *int }

func tileSlots(t *Tile, role, layout string) (threadTileSlot, bool) {
	switch role {
	case tir.RoleMatrixA:
		if layout == tir.LayoutColMajor {
			return threadTileSlot{&t.M, &t.K}, true
		}
		return threadTileSlot{&t.K, &t.M}, true
	case tir.RoleMatrixB:
		if layout == tir.LayoutColMajor {
			return threadTileSlot{&t.K, &t.N}, true
		}
		return threadTileSlot{&t.N, &t.K}, true
	case tir.RoleAccumulator:
		return threadTileSlot{&t.M, &t.N}, true
	default:
		return threadTileSlot{}, false
	}
}

// bufferFacts is what Stage 3 publishes: per-buffer stride/shape/bounds
// state, thread extents, the derived thread-tile and warp-tile, and the
// scaling factor recorded for each induction variable seen in a fragment
// index expression.
type bufferFacts struct {
	qualified    bool
	threadExtent map[string]int64
	strides      map[string][]tir.Expr
	buffers      map[string]analysisBufferInfo
	threadTile   Tile
	warpTile     Tile
	loopScaling  map[*tir.Var]int64
}

// BufferAnalyser is stage 3. It walks the matched IR once, collecting
// thread_extent/realize_scope/buffer_dim_align facts and deriving stride,
// thread-tile, and warp-tile geometry for every buffer in the fragment
// set.
type BufferAnalyser struct {
	fragReg map[string]bool
	role    map[string]string
	layout  map[string]string

	threadExtent map[string]int64
	dimAligns    map[*tir.Tensor][]dimAlign
	strides      map[string][]tir.Expr
	shapes       map[string][]tir.Expr
	buffers      map[string]analysisBufferInfo
	bounds       map[*tir.Tensor][]tir.Range

	threadTile  Tile
	loopScaling map[*tir.Var]int64

	abort bool
}

// NewBufferAnalyser seeds buf_map_ from the caller-supplied external
// buffers, exactly as BufferAnalyser's constructor does: an externally
// supplied buffer has no ProducerRealize node of its own to derive
// strides/shape from, so its strides/shape/external=true are taken
// verbatim from the ExternBuffer instead.
func NewBufferAnalyser(externBuffers map[*tir.Tensor]ExternBuffer, fragReg map[string]bool, role, layout map[string]string) *BufferAnalyser {
	ba := &BufferAnalyser{
		fragReg:      fragReg,
		role:         role,
		layout:       layout,
		threadExtent: make(map[string]int64),
		dimAligns:    make(map[*tir.Tensor][]dimAlign),
		strides:      make(map[string][]tir.Expr),
		shapes:       make(map[string][]tir.Expr),
		buffers:      make(map[string]analysisBufferInfo),
		bounds:       make(map[*tir.Tensor][]tir.Range),
		threadTile:   unassignedTile(),
		loopScaling:  make(map[*tir.Var]int64),
	}
	for _, eb := range externBuffers {
		name := simplifyName(eb.Name)
		shape := make([]tir.Expr, len(eb.Shape))
		for i, s := range eb.Shape {
			shape[i] = tir.NewIntImm(tir.Int32(), s)
		}
		strides := make([]tir.Expr, len(eb.Strides))
		for i, s := range eb.Strides {
			strides[i] = tir.NewIntImm(tir.Int32(), s)
		}
		ba.shapes[name] = shape
		if len(strides) > 0 {
			ba.strides[name] = strides
		}
		ba.buffers[name] = analysisBufferInfo{
			name:     name,
			dtype:    eb.DType,
			external: true,
			strides:  strides,
			shape:    shape,
		}
	}
	return ba
}

// computeStrides derives outermost-first strides from shape, optionally
// inflating a dimension's stride to a multiple of its buffer_dim_align
// factor before folding in the next dimension, following the original's
// stride loop in BufferAnalyser::VisitStmt_(ProducerStoreNode).
func computeStrides(shape []int64, aligns []dimAlign) []int64 {
	n := len(shape)
	strides := make([]int64, n)
	var acc int64 = 1
	for i := n - 1; i >= 0; i-- {
		strides[i] = acc
		if i < len(aligns) && aligns[i].factor != 0 {
			factor, offset := aligns[i].factor, aligns[i].offset
			rem := ((factor + offset - strides[i]%factor) % factor)
			strides[i] += rem
		}
		acc = strides[i] * shape[i]
	}
	return strides
}

func (ba *BufferAnalyser) Run(stmt tir.Stmt) bufferFacts {
	ba.visitStmt(stmt)
	if ba.abort {
		return bufferFacts{qualified: false}
	}
	warp, ok := ba.deriveWarpTile()
	if !ok {
		return bufferFacts{qualified: false}
	}
	return bufferFacts{
		qualified:    true,
		threadExtent: ba.threadExtent,
		strides:      ba.strides,
		buffers:      ba.buffers,
		threadTile:   ba.threadTile,
		warpTile:     warp,
		loopScaling:  ba.loopScaling,
	}
}

func (ba *BufferAnalyser) visitStmt(s tir.Stmt) {
	if ba.abort {
		return
	}
	switch n := s.(type) {
	case *tir.AttrStmt:
		ba.visitAttr(n)
	case *tir.ProducerRealize:
		ba.visitRealize(n)
	case *tir.ProducerStore:
		ba.visitStore(n)
	case *tir.For:
		ba.visitStmt(n.Body)
	case *tir.SeqStmt:
		for _, c := range n.Stmts {
			ba.visitStmt(c)
		}
	}
}

func (ba *BufferAnalyser) visitAttr(n *tir.AttrStmt) {
	switch n.Key {
	case tir.AttrThreadExtent:
		if iv, ok := n.Node.(*tir.IterVar); ok {
			if extent, ok := tir.AsLiteralInt(n.Value); ok {
				ba.threadExtent[iv.Name] = extent
			}
		}
	case tir.AttrBufferDimAlign:
		if tensor, ok := n.Node.(*tir.Tensor); ok {
			if tup, ok := n.Value.(*tir.Call); ok && len(tup.Args) >= 3 {
				dim, _ := tir.AsLiteralInt(tup.Args[0])
				factor, _ := tir.AsLiteralInt(tup.Args[1])
				offset, _ := tir.AsLiteralInt(tup.Args[2])
				aligns := ba.dimAligns[tensor]
				for int64(len(aligns)) <= dim {
					aligns = append(aligns, dimAlign{})
				}
				aligns[dim] = dimAlign{factor: factor, offset: offset}
				ba.dimAligns[tensor] = aligns
			}
		}
	}
	ba.visitStmt(n.Body)
}

func (ba *BufferAnalyser) visitRealize(n *tir.ProducerRealize) {
	name := simplifyName(n.Producer.Name)
	if bi, ok := ba.buffers[name]; ok && bi.external {
		ba.visitStmt(n.Body)
		return
	}
	shape := make([]tir.Expr, len(n.Bounds))
	shapeInt := make([]int64, len(n.Bounds))
	ok := true
	for i, r := range n.Bounds {
		shape[i] = r.Extent
		v, lit := tir.AsLiteralInt(r.Extent)
		shapeInt[i] = v
		ok = ok && lit
	}
	ba.shapes[name] = shape
	ba.bounds[n.Producer] = n.Bounds

	if ok {
		var aligns []dimAlign
		for _, a := range ba.dimAligns[n.Producer] {
			aligns = append(aligns, a)
		}
		strideInt := computeStrides(shapeInt, aligns)
		strides := make([]tir.Expr, len(strideInt))
		for i, s := range strideInt {
			strides[i] = tir.NewIntImm(tir.Int32(), s)
		}
		ba.strides[name] = strides
	}

	bi := analysisBufferInfo{name: name, dtype: n.Producer.DType, shape: shape, bounds: n.Bounds}
	if strides, ok := ba.strides[name]; ok {
		bi.strides = strides
	}
	ba.buffers[name] = bi

	if ba.fragReg[name] {
		if !ba.recordThreadTileFromShape(name, shapeInt, ok) {
			ba.abort = true
			return
		}
	}

	ba.visitStmt(n.Body)
}

// recordThreadTileFromShape assign-or-checks the innermost two literal
// shape dimensions into the thread-tile slot the buffer's (role, layout)
// selects, and rejects non-literal or non-multiple-of-16 inner shapes.
func (ba *BufferAnalyser) recordThreadTileFromShape(name string, shapeInt []int64, literal bool) bool {
	if len(shapeInt) < 2 || !literal {
		return false
	}
	d0, d1 := shapeInt[len(shapeInt)-2], shapeInt[len(shapeInt)-1]
	if d0%16 != 0 || d1%16 != 0 {
		return false
	}
	slots, ok := tileSlots(&ba.threadTile, ba.role[name], ba.layout[name])
	if !ok {
		return false
	}
	return assignOrCheck(slots.slot0, int(d0)) && assignOrCheck(slots.slot1, int(d1))
}

func assignOrCheck(slot *int, v int) bool {
	if *slot == -1 {
		*slot = v
		return true
	}
	return *slot == v
}

func (ba *BufferAnalyser) visitStore(n *tir.ProducerStore) {
	name := simplifyName(n.Producer.Name)
	if ba.fragReg[name] {
		ba.recordFragmentIndices(name, n.Indices)
	}
	ba.visitExpr(n.Value)
}

func (ba *BufferAnalyser) visitExpr(e tir.Expr) {
	switch n := e.(type) {
	case *tir.ProducerLoad:
		name := simplifyName(n.Producer.Name)
		if ba.fragReg[name] {
			ba.recordFragmentIndices(name, n.Indices)
		}
	case *tir.Add:
		ba.visitExpr(n.A)
		ba.visitExpr(n.B)
	case *tir.Sub:
		ba.visitExpr(n.A)
		ba.visitExpr(n.B)
	case *tir.Mul:
		ba.visitExpr(n.A)
		ba.visitExpr(n.B)
	case *tir.Cast:
		ba.visitExpr(n.Value)
	}
}

// recordFragmentIndices drives the IndexVisitor step: for each of the
// innermost two relative indices, records the scaling factor (that
// dimension's literal shape value, or 16 if none is available) against
// every Var the (simplified) index mentions.
func (ba *BufferAnalyser) recordFragmentIndices(name string, indices []tir.Expr) {
	bi, ok := ba.buffers[name]
	rel := indices
	if ok {
		rel = bi.relIndex(indices)
	}
	if len(rel) < 2 {
		return
	}
	last2 := rel[len(rel)-2:]
	shape := bi.shape
	for i, idx := range last2 {
		factor := int64(16)
		if len(shape) >= 2 {
			shapeIdx := len(shape) - 2 + i
			if v, lit := tir.AsLiteralInt(shape[shapeIdx]); lit {
				factor = v
			}
		}
		for _, v := range tir.Vars(tir.Simplify(idx)) {
			ba.loopScaling[v] = factor
		}
	}
}

// deriveWarpTile derives the warp tile from the thread tile and the
// threadIdx.x/y extents, and rejects geometries that don't land on one
// of the hardware's supported warp tiles.
func (ba *BufferAnalyser) deriveWarpTile() (Tile, bool) {
	tx, okx := ba.threadExtent["threadIdx.x"]
	ty, oky := ba.threadExtent["threadIdx.y"]
	if !okx || !oky || tx <= 0 {
		return Tile{}, false
	}
	warpY := 32 / tx
	if warpY <= 0 || ty < warpY || ty%warpY != 0 {
		return Tile{}, false
	}
	if ba.threadTile.M == -1 || ba.threadTile.N == -1 || ba.threadTile.K == -1 {
		return Tile{}, false
	}
	warp := Tile{
		M: int(tx) * ba.threadTile.M,
		N: int(warpY) * ba.threadTile.N,
		K: ba.threadTile.K,
	}
	if !warp.supported() {
		return Tile{}, false
	}
	return warp, true
}

// QualifiedForTensorCore re-exposes bufferFacts.qualified under the
// documented accessor name.
func (f bufferFacts) QualifiedForTensorCore() bool { return f.qualified }
