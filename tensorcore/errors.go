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

import "fmt"

// InternalError marks a programmer-error condition: internal state that
// should be impossible to reach on well-formed input - a tensor present
// in one map but absent from another where it must appear, a matched
// store missing recorded bounds, a fragment load without a recorded
// stride. These are not demotions to no-op; callers are not expected to
// recover from them.
type InternalError struct {
	Stage   string
	Message string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("tensorcore: internal error in %s: %s", e.Stage, e.Message)
}

func internalErrorf(stage, format string, args ...any) *InternalError {
	return &InternalError{Stage: stage, Message: fmt.Sprintf(format, args...)}
}

func assertf(cond bool, stage, format string, args ...any) {
	if !cond {
		panic(internalErrorf(stage, format, args...))
	}
}
