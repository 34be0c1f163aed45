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

// MapChildren rebuilds s with each of its immediate child statements
// replaced by fn(child), preserving every other field. This is the
// "single recursive walker exposing typed callbacks" a tagged-variant IR
// wants in place of the source's StmtMutator base class: callers compose
// it bottom-up (call MapChildren first, inspect/replace the rebuilt node
// second) the same way StmtExprMutator::VisitStmt_ recurses into children
// before the override's own logic runs.
func MapChildren(s Stmt, fn func(Stmt) Stmt) Stmt {
	switch n := s.(type) {
	case *AttrStmt:
		return NewAttrStmt(n.Key, n.Node, n.Value, fn(n.Body))
	case *ProducerRealize:
		return NewProducerRealize(n.Producer, n.Bounds, n.Condition, fn(n.Body))
	case *For:
		return NewFor(n.Var, n.Min, n.Extent, n.Kind, fn(n.Body), n.ThreadBinding)
	case *SeqStmt:
		stmts := make([]Stmt, len(n.Stmts))
		for i, c := range n.Stmts {
			stmts[i] = fn(c)
		}
		return NewSeqStmt(stmts...)
	case *ProducerStore, *Evaluate, nil:
		return s
	default:
		return s
	}
}

// Vars collects every distinct Var referenced in e, in first-encounter
// order. BufferAnalyser uses this to spread a fragment index's scaling
// factor across every induction variable the (simplified) index
// mentions, not just a single leaf.
func Vars(e Expr) []*Var {
	var out []*Var
	seen := make(map[*Var]bool)
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case *Var:
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		case *Add:
			walk(n.A)
			walk(n.B)
		case *Sub:
			walk(n.A)
			walk(n.B)
		case *Mul:
			walk(n.A)
			walk(n.B)
		case *Div:
			walk(n.A)
			walk(n.B)
		case *Mod:
			walk(n.A)
			walk(n.B)
		case *Cast:
			walk(n.Value)
		case *Call:
			for _, a := range n.Args {
				walk(a)
			}
		}
	}
	walk(e)
	return out
}
