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

func TestComputeStridesRowMajorNoAlign(t *testing.T) {
	got := computeStrides([]int64{16, 16}, nil)
	want := []int64{16, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("computeStrides(%v) = %v, want %v", []int64{16, 16}, got, want)
		}
	}
}

func TestComputeStridesPadsToAlignment(t *testing.T) {
	// A [16,16] buffer whose outer dimension's stride is padded to a
	// multiple of 32 gets a wider row stride than its own extent.
	got := computeStrides([]int64{16, 16}, []dimAlign{{factor: 32, offset: 0}, {}})
	if got[1] != 1 {
		t.Fatalf("innermost stride should stay 1, got %d", got[1])
	}
	if got[0]%32 != 0 {
		t.Fatalf("outer stride should be padded to a multiple of 32, got %d", got[0])
	}
	if got[0] < 16 {
		t.Fatalf("padded stride should not shrink below the unpadded extent, got %d", got[0])
	}
}

func TestAssignOrCheck(t *testing.T) {
	slot := -1
	if !assignOrCheck(&slot, 16) {
		t.Fatalf("expected first assignment to succeed")
	}
	if slot != 16 {
		t.Fatalf("expected slot to be set to 16, got %d", slot)
	}
	if !assignOrCheck(&slot, 16) {
		t.Fatalf("expected a matching re-check to succeed")
	}
	if assignOrCheck(&slot, 32) {
		t.Fatalf("expected a conflicting re-check to fail")
	}
}

func TestTileSlotsTable(t *testing.T) {
	cases := []struct {
		role, layout string
		wantField    string
	}{
		{tir.RoleMatrixA, tir.LayoutColMajor, "M,K"},
		{tir.RoleMatrixA, tir.LayoutRowMajor, "K,M"},
		{tir.RoleMatrixB, tir.LayoutColMajor, "K,N"},
		{tir.RoleMatrixB, tir.LayoutRowMajor, "N,K"},
		{tir.RoleAccumulator, "", "M,N"},
	}
	for _, c := range cases {
		tile := unassignedTile()
		slots, ok := tileSlots(&tile, c.role, c.layout)
		if !ok {
			t.Errorf("%s/%s: expected a slot mapping", c.role, c.layout)
			continue
		}
		*slots.slot0 = 1
		*slots.slot1 = 2
		switch c.wantField {
		case "M,K":
			if tile.M != 1 || tile.K != 2 {
				t.Errorf("%s/%s: expected slots to target (M,K), got tile=%+v", c.role, c.layout, tile)
			}
		case "K,M":
			if tile.K != 1 || tile.M != 2 {
				t.Errorf("%s/%s: expected slots to target (K,M), got tile=%+v", c.role, c.layout, tile)
			}
		case "K,N":
			if tile.K != 1 || tile.N != 2 {
				t.Errorf("%s/%s: expected slots to target (K,N), got tile=%+v", c.role, c.layout, tile)
			}
		case "N,K":
			if tile.N != 1 || tile.K != 2 {
				t.Errorf("%s/%s: expected slots to target (N,K), got tile=%+v", c.role, c.layout, tile)
			}
		case "M,N":
			if tile.M != 1 || tile.N != 2 {
				t.Errorf("%s/%s: expected slots to target (M,N), got tile=%+v", c.role, c.layout, tile)
			}
		}
	}
}

func TestRecordThreadTileFromShapeRejectsNonMultipleOf16(t *testing.T) {
	ba := NewBufferAnalyser(nil, map[string]bool{"C": true}, map[string]string{"C": tir.RoleAccumulator}, map[string]string{"C": tir.LayoutColMajor})
	if ba.recordThreadTileFromShape("C", []int64{24, 16}, true) {
		t.Fatalf("expected rejection when a tracked dimension is not a multiple of 16")
	}
}

func TestRecordThreadTileFromShapeAssignsAccumulator(t *testing.T) {
	ba := NewBufferAnalyser(nil, map[string]bool{"C": true}, map[string]string{"C": tir.RoleAccumulator}, map[string]string{"C": tir.LayoutColMajor})
	if !ba.recordThreadTileFromShape("C", []int64{16, 32}, true) {
		t.Fatalf("expected a valid accumulator shape to be accepted")
	}
	if ba.threadTile.M != 16 || ba.threadTile.N != 32 {
		t.Fatalf("expected thread tile (M,N)=(16,32), got %+v", ba.threadTile)
	}
}

// deriveWarpTile's formula is exercised directly against hand-picked
// thread-tile/extent values, independent of whether those thread-tile
// components could themselves have been produced by the %16-constrained
// shape path: this isolates the arithmetic from the rest of the pipeline.
func TestDeriveWarpTileFormula(t *testing.T) {
	ba := NewBufferAnalyser(nil, nil, nil, nil)
	ba.threadTile = Tile{M: 1, K: 16, N: 8}
	ba.threadExtent["threadIdx.x"] = 16
	ba.threadExtent["threadIdx.y"] = 2

	warp, ok := ba.deriveWarpTile()
	if !ok {
		t.Fatalf("expected a qualifying warp tile")
	}
	if warp != (Tile{M: 16, K: 16, N: 16}) {
		t.Fatalf("got warp tile %+v, want {16,16,16}", warp)
	}
}

func TestDeriveWarpTileRejectsUnsupportedGeometry(t *testing.T) {
	ba := NewBufferAnalyser(nil, nil, nil, nil)
	ba.threadTile = Tile{M: 1, K: 16, N: 1}
	ba.threadExtent["threadIdx.x"] = 16
	ba.threadExtent["threadIdx.y"] = 2

	if _, ok := ba.deriveWarpTile(); ok {
		t.Fatalf("expected an unsupported (m,n,k)=(16,2,16) warp tile to be rejected")
	}
}

func TestDeriveWarpTileRejectsBadThreadExtentRatio(t *testing.T) {
	ba := NewBufferAnalyser(nil, nil, nil, nil)
	ba.threadTile = Tile{M: 1, K: 16, N: 8}
	ba.threadExtent["threadIdx.x"] = 16
	ba.threadExtent["threadIdx.y"] = 3 // not a multiple of warpY=2

	if _, ok := ba.deriveWarpTile(); ok {
		t.Fatalf("expected rejection when threadIdx.y is not a multiple of 32/threadIdx.x")
	}
}

func TestRelIndexSubtractsBoundsOnce(t *testing.T) {
	minExpr := tir.NewIntImm(tir.Int32(), 4)
	bi := analysisBufferInfo{bounds: []tir.Range{tir.RangeFromMinExtent(minExpr, tir.NewIntImm(tir.Int32(), 16))}}
	idx := tir.NewIntImm(tir.Int32(), 10)
	rel := bi.relIndex([]tir.Expr{idx})
	sub, ok := rel[0].(*tir.Sub)
	if !ok {
		t.Fatalf("expected a Sub node once bounds are known, got %T", rel[0])
	}
	if sub.A != idx || sub.B != minExpr {
		t.Fatalf("expected Sub(index, bounds.Min)")
	}
}

func TestNewBufferAnalyserSeedsExternalBufferStrides(t *testing.T) {
	tensor := tir.NewTensor("X", tir.Float16())
	extern := map[*tir.Tensor]ExternBuffer{
		tensor: {Name: "X", DType: tir.Float16(), Shape: []int64{64, 16}, Strides: []int64{16, 1}},
	}
	ba := NewBufferAnalyser(extern, nil, nil, nil)

	bi, ok := ba.buffers["X"]
	if !ok {
		t.Fatalf("expected an external buffer entry for %q", "X")
	}
	if !bi.external {
		t.Fatalf("expected external=true for a caller-supplied buffer")
	}
	if len(bi.strides) != 2 {
		t.Fatalf("expected 2 recorded strides, got %d", len(bi.strides))
	}
	got, ok := tir.AsLiteralInt(bi.strides[0])
	if !ok || got != 16 {
		t.Fatalf("expected outer stride 16 taken verbatim from ExternBuffer, got %v", bi.strides[0])
	}
}

func TestVisitRealizeSkipsRecomputingExternalBuffer(t *testing.T) {
	tensor := tir.NewTensor("X", tir.Float16())
	extern := map[*tir.Tensor]ExternBuffer{
		tensor: {Name: "X", DType: tir.Float16(), Shape: []int64{64, 16}, Strides: []int64{16, 1}},
	}
	ba := NewBufferAnalyser(extern, nil, nil, nil)

	bounds := []tir.Range{
		tir.RangeFromMinExtent(tir.NewIntImm(tir.Int32(), 0), tir.NewIntImm(tir.Int32(), 8)),
		tir.RangeFromMinExtent(tir.NewIntImm(tir.Int32(), 0), tir.NewIntImm(tir.Int32(), 8)),
	}
	realize := tir.NewProducerRealize(tensor, bounds, tir.NewIntImm(tir.Int32(), 1), tir.NewSeqStmt())
	ba.visitRealize(realize)

	got, ok := tir.AsLiteralInt(ba.buffers["X"].strides[0])
	if !ok || got != 16 {
		t.Fatalf("expected the external stride to survive a ProducerRealize for the same buffer, got %v", ba.buffers["X"].strides[0])
	}
}

func TestRelIndexPassesThroughWithoutBounds(t *testing.T) {
	bi := analysisBufferInfo{}
	idx := tir.NewIntImm(tir.Int32(), 10)
	rel := bi.relIndex([]tir.Expr{idx})
	if rel[0] != idx {
		t.Fatalf("expected passthrough when no bounds are recorded")
	}
}
