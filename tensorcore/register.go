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
	"github.com/tvmgo/tensorcore/tir"
)

// RegisteredName is the well-known global name this pass is published
// under in the host compiler's extension registry.
const RegisteredName = "schedule.SchedulePostProcRewriteForTensorCore"

// rewriteFunc is the signature every entry in registry is called through:
// Rewrite's own signature, so a lookup by name is indistinguishable from
// calling the pass directly.
type rewriteFunc func(stmt tir.Stmt, sch *compute.Schedule, externBuffers map[*tir.Tensor]ExternBuffer) tir.Stmt

// registry is a minimal stand-in for the host compiler's global
// extension-function table: a name to callable mapping queried by string,
// the same shape as TVM's PackedFunc registry this pass is published
// into.
var registry = map[string]rewriteFunc{
	RegisteredName: Rewrite,
}

// Registered reports whether name is a known entry in the pass registry,
// letting callers probe for this pass the way host code looks up
// schedule.SchedulePostProcRewriteForTensorCore before invoking it.
func Registered(name string) bool {
	_, ok := registry[name]
	return ok
}

// Lookup retrieves the callable registered under name, mirroring the host
// compiler's by-name PackedFunc retrieval before invocation.
func Lookup(name string) (rewriteFunc, bool) {
	fn, ok := registry[name]
	return fn, ok
}
