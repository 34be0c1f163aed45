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

// Package tir is a minimal stand-in for the host compiler's tensor IR: the
// node kinds, constructors, and attribute/builtin vocabulary that the
// tensorcore rewrite pass consumes as an external collaborator. It does not
// attempt to be a general-purpose IR — only the surface schedule_postproc's
// descendants touch.
package tir

import "fmt"

// DTypeCode categorizes a DataType's representation.
type DTypeCode int

const (
	Float DTypeCode = iota
	Int
	UInt
	Handle
)

// DataType mirrors TVM's DataType: a code plus a bit width. Buffers carry
// one; the matcher and buffer analyser only ever compare these by value.
type DataType struct {
	Code DTypeCode
	Bits int
}

func (d DataType) String() string {
	switch d.Code {
	case Float:
		return fmt.Sprintf("float%d", d.Bits)
	case Int:
		return fmt.Sprintf("int%d", d.Bits)
	case UInt:
		return fmt.Sprintf("uint%d", d.Bits)
	case Handle:
		return "handle"
	default:
		return "invalid"
	}
}

func Float32() DataType { return DataType{Float, 32} }
func Float16() DataType { return DataType{Float, 16} }
func Int32() DataType   { return DataType{Int, 32} }
func Int8() DataType    { return DataType{Int, 8} }
func UInt8() DataType   { return DataType{UInt, 8} }
func Int4() DataType    { return DataType{Int, 4} }
func UInt4() DataType   { return DataType{UInt, 4} }
func Int1() DataType    { return DataType{Int, 1} }
func HandleType() DataType { return DataType{Handle, 0} }

// IsAccumulatorDType reports whether d is an admissible MMA accumulator
// dtype.
func (d DataType) IsAccumulatorDType() bool {
	return d == Float32() || d == Int32()
}

// IsOperandDType reports whether d is an admissible MMA A/B operand dtype.
func (d DataType) IsOperandDType() bool {
	switch d {
	case Float16(), Int8(), UInt8(), Int4(), UInt4(), Int1():
		return true
	default:
		return false
	}
}
