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

// Package tensorcore is the pass itself: the four-stage pipeline that
// recognizes the canonical inner-product accumulation pattern on local
// buffers and rewrites it into fragment-oriented tensor-core intrinsics.
// Matcher, ScheduleAnalyser, BufferAnalyser, and Mutator each publish an
// immutable facts record the next stage borrows by read-only reference —
// no stage mutates a previous stage's maps.
package tensorcore

import "github.com/tvmgo/tensorcore/tir"

// Tile is an (m, n, k) MMA geometry. -1 in any field means unassigned,
// matching the original's Tile{-1,-1,-1} default.
type Tile struct {
	M, K, N int
}

func unassignedTile() Tile { return Tile{M: -1, K: -1, N: -1} }

// supportedWarpTiles enumerates the hardware's allowed warp-tile
// geometries.
var supportedWarpTiles = []Tile{
	{M: 16, N: 16, K: 16},
	{M: 8, N: 32, K: 16},
	{M: 32, N: 8, K: 16},
	{M: 8, N: 8, K: 32},
	{M: 8, N: 8, K: 128},
}

func (t Tile) supported() bool {
	for _, s := range supportedWarpTiles {
		if s == t {
			return true
		}
	}
	return false
}

// matchBufferInfo is the matching-stage view of a tensor: just enough to
// decide local-ness and to compare "is this the same tensor" by identity
// equality on name, dtype, external, and released.
type matchBufferInfo struct {
	name     string
	dtype    tir.DataType
	external bool
	released bool
}

func (bi matchBufferInfo) sameAs(other matchBufferInfo) bool {
	return bi.name == other.name && bi.dtype == other.dtype &&
		bi.external == other.external && bi.released == other.released
}

// analysisBufferInfo extends matchBufferInfo with the shape/stride/bounds
// facts BufferAnalyser derives.
type analysisBufferInfo struct {
	name     string
	dtype    tir.DataType
	external bool
	released bool
	strides  []tir.Expr
	shape    []tir.Expr
	bounds   []tir.Range
}

// relIndex subtracts each index by the realize bound's min, matching the
// original's BufferInfo::RelIndex: indices are relative to the realize
// region once one has been recorded, and passed through unchanged
// otherwise (e.g. for an externally supplied buffer with no bounds).
func (bi analysisBufferInfo) relIndex(indices []tir.Expr) []tir.Expr {
	if len(bi.bounds) == 0 {
		return indices
	}
	out := make([]tir.Expr, len(indices))
	for i, idx := range indices {
		out[i] = tir.NewSub(idx, bi.bounds[i].Min)
	}
	return out
}

// dimAlign is one buffer_dim_align entry: pad this dimension's stride up
// to a multiple of factor, offset by offset.
type dimAlign struct {
	factor, offset int64
}

// ExternBuffer is an externally supplied buffer descriptor: a
// caller-provided tensor's real name/dtype/shape/strides, bypassing this
// pass's own stride derivation.
type ExternBuffer struct {
	Name    string
	DType   tir.DataType
	Shape   []int64
	Strides []int64
}

// simplifyName truncates a buffer name at its first '.', the convention
// the original flags as "dangerous, consider other means". Centralized
// here so the convention can be replaced wholesale later without
// hunting call sites.
func simplifyName(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return name[:i]
		}
	}
	return name
}
