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

// Well-known attribute keys. Interned here as the single source of
// truth, the same way the original pulls them from tvm::tir::attr rather
// than spelling string literals at each use site.
const (
	AttrPragmaTensorCore = "pragma_tensor_core"
	AttrRealizeScope     = "realize_scope"
	AttrThreadExtent     = "thread_extent"
	AttrBufferDimAlign   = "buffer_dim_align"
	AttrBufferBindScope  = "buffer_bind_scope"
)

// Builtin call identities.
const (
	BuiltinTVMTuple        = "tvm_tuple"
	BuiltinCallExtern      = "call_extern"
	BuiltinMMASync         = "tvm_mma_sync"
	BuiltinBMMASync        = "tvm_bmma_sync"
	BuiltinFillFragment    = "tvm_fill_fragment"
	BuiltinLoadMatrixSync  = "tvm_load_matrix_sync"
	BuiltinStoreMatrixSync = "tvm_store_matrix_sync"
)

// Emitted realize_scope / layout string vocabulary, bit-exact since
// downstream codegen keys off these strings.
const (
	ScopeLocal = "local"

	RoleMatrixA     = "matrix_a"
	RoleMatrixB     = "matrix_b"
	RoleAccumulator = "accumulator"

	LayoutRowMajor = "row_major"
	LayoutColMajor = "col_major"
)

// WMMAScope returns the realize_scope value for a fragment tensor of the
// given role: "wmma." + role.
func WMMAScope(role string) string { return "wmma." + role }

// Buffer is the opaque buffer descriptor that buffer_bind_scope carries:
// a view into a fragment tensor with its own strides/shape/elem_offset,
// built fresh by the mutator for every matched access.
type Buffer struct {
	Data          *Var
	Name          string
	Scope         string
	DType         DataType
	Strides       []Expr
	Shape         []Expr
	DataAlignment int
	ElemOffset    Expr
	OffsetFactor  int
}
