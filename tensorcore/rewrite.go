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
	"github.com/tvmgo/tensorcore/compute"
	"github.com/tvmgo/tensorcore/target"
	"github.com/tvmgo/tensorcore/tir"
)

// debugTensorCore gates diagnostic tracing of the driver's state-machine
// transitions behind TENSORCORE_DEBUG, the same convention hwygen/ir's
// fusion pass uses for DEBUG_FUSION.
var debugTensorCore = debugFlagFromEnv("TENSORCORE_DEBUG")

// Rewrite is the single entry point: rewrite(stmt, schedule,
// extern_buffer_map) -> stmt. It drives the
// Start -> TargetCheck -> {Skip|Match} -> {Skip|Classify} -> {Skip|Analyze}
// -> {Skip|Rewrite} -> End state machine; any Skip returns stmt unchanged.
func Rewrite(stmt tir.Stmt, sch *compute.Schedule, externBuffers map[*tir.Tensor]ExternBuffer) tir.Stmt {
	if !targetQualifies() {
		debugf("tensorcore: target check failed, skipping")
		return stmt
	}

	matcher := NewMatcher(externBuffers)
	match := matcher.Run(stmt)
	if !match.matched {
		debugf("tensorcore: no mma_sync pattern matched, skipping")
		return stmt
	}

	accDType := accumulatorDType(match)

	sched := RunScheduleAnalyser(sch, accDType, match.mmaSync)
	if !sched.ok {
		debugf("tensorcore: operand classification failed, skipping")
		return stmt
	}

	analyser := NewBufferAnalyser(externBuffers, match.fragReg, sched.role, sched.layout)
	buf := analyser.Run(stmt)
	if !buf.QualifiedForTensorCore() {
		debugf("tensorcore: buffer/tile analysis rejected the IR, skipping")
		return stmt
	}

	mutator := NewMutator(match, sched, buf)
	return mutator.Run(stmt)
}

// accumulatorDType reads the dtype off any one matched store's
// accumulator load. The matcher checks each store's accumulator dtype on
// its own, so when matched stores differ, which one is returned depends
// on map iteration order.
func accumulatorDType(match matchFacts) tir.DataType {
	for _, ops := range match.mmaSync {
		return ops.C.DType()
	}
	return tir.Float32()
}

// targetQualifies implements the driver's initial TargetCheck: the
// current target must be CUDA, and a CUDA device must be discoverable.
func targetQualifies() bool {
	tgt, ok := target.Current()
	if !ok || tgt.Kind.Name != "cuda" {
		return false
	}
	return target.DeviceAvailable("cuda")
}
