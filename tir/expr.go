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

// Expr is any scalar expression node: Add, Mul, Cast, Var, IntImm,
// FloatImm, StringImm, ProducerLoad, Reduce, Call are the kinds this pass
// actually touches. Sub/Div/Mod are added for the arithmetic the
// original's stride and elem_offset bookkeeping performs, not for any
// new surface.
type Expr interface {
	isExpr()
	DType() DataType
}

// Var is a reference to an induction or thread-binding variable. Two Vars
// are the "same" variable iff they are the same pointer — matching
// VarNode identity in the original, and exactly what LoopScaling and
// ThreadIdxMutator key on.
type Var struct {
	Name string
	T    DataType
}

func NewVar(name string, t DataType) *Var { return &Var{Name: name, T: t} }
func (v *Var) isExpr()                    {}
func (v *Var) DType() DataType            { return v.T }

// IntImm is an integer literal.
type IntImm struct {
	T     DataType
	Value int64
}

func NewIntImm(t DataType, v int64) *IntImm { return &IntImm{T: t, Value: v} }
func (n *IntImm) isExpr()                   {}
func (n *IntImm) DType() DataType           { return n.T }

// FloatImm is a floating-point literal.
type FloatImm struct {
	T     DataType
	Value float64
}

func NewFloatImm(t DataType, v float64) *FloatImm { return &FloatImm{T: t, Value: v} }
func (n *FloatImm) isExpr()                       {}
func (n *FloatImm) DType() DataType               { return n.T }

// StringImm is a string literal, used for layout tags and builtin
// selector arguments.
type StringImm struct{ Value string }

func NewStringImm(v string) *StringImm { return &StringImm{Value: v} }
func (n *StringImm) isExpr()           {}
func (n *StringImm) DType() DataType   { return HandleType() }

// binary is the shared shape of Add/Sub/Mul/Div/Mod: two operands, result
// dtype taken from the left operand (the original always builds these
// with matching operand dtypes at the call sites this pass cares about).
type binary struct {
	A, B Expr
}

type Add struct {
	binary
}

func NewAdd(a, b Expr) *Add         { return &Add{binary{a, b}} }
func (n *Add) isExpr()              {}
func (n *Add) DType() DataType      { return n.A.DType() }

type Sub struct{ binary }

func NewSub(a, b Expr) *Sub    { return &Sub{binary{a, b}} }
func (n *Sub) isExpr()         {}
func (n *Sub) DType() DataType { return n.A.DType() }

type Mul struct{ binary }

func NewMul(a, b Expr) *Mul    { return &Mul{binary{a, b}} }
func (n *Mul) isExpr()         {}
func (n *Mul) DType() DataType { return n.A.DType() }

type Div struct{ binary }

func NewDiv(a, b Expr) *Div    { return &Div{binary{a, b}} }
func (n *Div) isExpr()         {}
func (n *Div) DType() DataType { return n.A.DType() }

type Mod struct{ binary }

func NewMod(a, b Expr) *Mod    { return &Mod{binary{a, b}} }
func (n *Mod) isExpr()         {}
func (n *Mod) DType() DataType { return n.A.DType() }

// Cast reinterprets Value as T. unpackTypeCast looks through exactly
// this node.
type Cast struct {
	T     DataType
	Value Expr
}

func NewCast(t DataType, v Expr) *Cast { return &Cast{T: t, Value: v} }
func (n *Cast) isExpr()                {}
func (n *Cast) DType() DataType        { return n.T }

// Tensor is a named logical tensor. Pass stages key maps on the pointer —
// one Tensor value is constructed per logical tensor and shared by every
// reference to it, exactly as the original shares one Tensor ObjectRef.
type Tensor struct {
	Name  string
	DType DataType
}

func NewTensor(name string, dtype DataType) *Tensor {
	return &Tensor{Name: name, DType: dtype}
}

// ProducerLoad reads one element of Producer at Indices.
type ProducerLoad struct {
	Producer *Tensor
	Indices  []Expr
}

func NewProducerLoad(producer *Tensor, indices []Expr) *ProducerLoad {
	return &ProducerLoad{Producer: producer, Indices: indices}
}
func (n *ProducerLoad) isExpr()       {}
func (n *ProducerLoad) DType() DataType { return n.Producer.DType }

// CommReducer is a reduction's combiner. Result[0] is checked against
// *Add by ScheduleAnalyser's BodyVisitor.
type CommReducer struct {
	Result []Expr
}

// Reduce is a reduction expression: Source values combined by Combiner
// over the (implicit, schedule-carried) reduction axis.
type Reduce struct {
	Combiner CommReducer
	Source   []Expr
	T        DataType
}

func (n *Reduce) isExpr()       {}
func (n *Reduce) DType() DataType { return n.T }

// Call is either a builtin intrinsic invocation (Op is one of the
// tvm_*/call_extern names in attr.go) or, pre-rewrite, a plain call
// expression. Args are positional.
type Call struct {
	T    DataType
	Op   string
	Args []Expr
}

func NewCall(t DataType, op string, args ...Expr) *Call {
	return &Call{T: t, Op: op, Args: args}
}
func (n *Call) isExpr()       {}
func (n *Call) DType() DataType { return n.T }

// IterVar names an axis: a spatial or reduction loop variable belonging
// to a compute definition, or a thread-binding axis.
type IterVar struct {
	Var  *Var
	Name string
}
