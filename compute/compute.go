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

// Package compute is a stand-in for the scheduler's output compute
// definitions, the ones ScheduleAnalyser consumes. The scheduler itself is
// out of scope; this package only carries the handful of fields
// ScheduleAnalyser's BodyVisitor reads off a compute node.
package compute

import "github.com/tvmgo/tensorcore/tir"

// Op is one output compute definition: a named tensor production with
// spatial axes, a single reduction axis (when it is a reduction), and a
// body of expressions (normally a singleton with a *tir.Reduce for the
// matmul-accumulation pattern this pass looks for).
type Op struct {
	Name       string
	Axis       []tir.IterVar
	ReduceAxis []tir.IterVar
	Body       []tir.Expr
}

// Schedule is the minimal piece of a te.Schedule that
// ScheduleAnalyser.MatrixIdentify walks: the set of output compute
// definitions.
type Schedule struct {
	Outputs []Op
}
