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
	"fmt"
	"os"
)

// debugFlagFromEnv reports whether the named environment variable is set
// to any non-empty value, the same convention hwygen/ir's fusion pass
// uses for DEBUG_FUSION.
func debugFlagFromEnv(name string) bool {
	return os.Getenv(name) != ""
}

func debugf(format string, args ...any) {
	if debugTensorCore {
		fmt.Fprintf(os.Stderr, "[tensorcore] "+format+"\n", args...)
	}
}
