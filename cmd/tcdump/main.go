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

// Command tcdump builds a canonical inner-product-accumulation IR fixture
// from its flags, runs it through tensorcore.Rewrite, and prints the
// statement tree before and after.
//
// Usage:
//
//	tcdump -m 16 -n 16 -k 16 -tx 16 -ty 2
//	tcdump -cuda=false          # force the driver's target check to fail
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tvmgo/tensorcore/compute"
	"github.com/tvmgo/tensorcore/target"
	"github.com/tvmgo/tensorcore/tensorcore"
	"github.com/tvmgo/tensorcore/tir"
)

var (
	m    = flag.Int("m", 16, "accumulator/matrix_a rows")
	n    = flag.Int("n", 16, "accumulator/matrix_b columns")
	k    = flag.Int("k", 16, "reduction extent")
	tx   = flag.Int("tx", 16, "threadIdx.x extent bound around the fragment region")
	ty   = flag.Int("ty", 2, "threadIdx.y extent bound around the fragment region")
	cuda = flag.Bool("cuda", true, "simulate a CUDA target with a device present")
)

func main() {
	flag.Parse()

	if *cuda {
		target.Current = func() (target.Target, bool) { return target.Target{Kind: target.Kind{Name: "cuda"}}, true }
		target.DeviceAvailable = func(kind string) bool { return kind == "cuda" }
	} else {
		target.Current = func() (target.Target, bool) { return target.Target{Kind: target.Kind{Name: "llvm"}}, true }
		target.DeviceAvailable = func(kind string) bool { return false }
	}

	stmt, sch := buildFixture(*m, *n, *k, *tx, *ty)

	fmt.Println("=== before ===")
	dump(stmt, 0)

	out := tensorcore.Rewrite(stmt, sch, nil)

	fmt.Println("\n=== after ===")
	dump(out, 0)

	if out == stmt {
		fmt.Println("\n(no-op: target check, pattern match, role classification, or tile qualification rejected this input)")
		os.Exit(0)
	}
	fmt.Println("\n(rewritten)")
}

// buildFixture constructs A[k,m] * B[k,n] -> C[m,n], the canonical
// row/col-major GEMM accumulation this pass recognizes, wrapped in the
// realize/pragma/thread_extent scaffolding the matcher and buffer analyser
// both expect.
func buildFixture(m, n, k, tx, ty int) (tir.Stmt, *compute.Schedule) {
	a := tir.NewTensor("A", tir.Float16())
	b := tir.NewTensor("B", tir.Float16())
	c := tir.NewTensor("C", tir.Float32())

	i := tir.NewVar("i", tir.Int32())
	j := tir.NewVar("j", tir.Int32())
	kv := tir.NewVar("k", tir.Int32())

	loadC := tir.NewProducerLoad(c, []tir.Expr{i, j})
	loadA := tir.NewProducerLoad(a, []tir.Expr{kv, i})
	loadB := tir.NewProducerLoad(b, []tir.Expr{kv, j})
	mul := tir.NewMul(tir.NewCast(tir.Float32(), loadA), tir.NewCast(tir.Float32(), loadB))
	store := tir.NewProducerStore(c, tir.NewAdd(loadC, mul), []tir.Expr{i, j})

	body := tir.Stmt(store)
	body = realizeLocal(a, []int64{int64(k), int64(m)}, body)
	body = realizeLocal(b, []int64{int64(k), int64(n)}, body)
	body = realizeLocal(c, []int64{int64(m), int64(n)}, body)

	body = tir.NewAttrStmt(tir.AttrThreadExtent, &tir.IterVar{Var: tir.NewVar("threadIdx.y", tir.Int32()), Name: "threadIdx.y"},
		tir.NewIntImm(tir.Int32(), int64(ty)), body)
	body = tir.NewAttrStmt(tir.AttrThreadExtent, &tir.IterVar{Var: tir.NewVar("threadIdx.x", tir.Int32()), Name: "threadIdx.x"},
		tir.NewIntImm(tir.Int32(), int64(tx)), body)

	stmt := tir.NewAttrStmt(tir.AttrPragmaTensorCore, nil, tir.NewIntImm(tir.Int32(), 1), body)

	sch := &compute.Schedule{
		Outputs: []compute.Op{
			{
				Name:       "C",
				Axis:       []tir.IterVar{{Var: i, Name: "i"}, {Var: j, Name: "j"}},
				ReduceAxis: []tir.IterVar{{Var: kv, Name: "k"}},
				Body: []tir.Expr{&tir.Reduce{
					Combiner: tir.CommReducer{Result: []tir.Expr{tir.NewAdd(tir.NewIntImm(tir.Int32(), 0), tir.NewIntImm(tir.Int32(), 0))}},
					Source:   []tir.Expr{mul},
					T:        tir.Float32(),
				}},
			},
		},
	}
	return stmt, sch
}

func realizeLocal(t *tir.Tensor, shape []int64, body tir.Stmt) tir.Stmt {
	bounds := make([]tir.Range, len(shape))
	for i, s := range shape {
		bounds[i] = tir.RangeFromMinExtent(tir.NewIntImm(tir.Int32(), 0), tir.NewIntImm(tir.Int32(), s))
	}
	scoped := tir.NewAttrStmt(tir.AttrRealizeScope, t, tir.NewStringImm(tir.ScopeLocal), body)
	return tir.NewProducerRealize(t, bounds, tir.NewIntImm(tir.Int32(), 1), scoped)
}

func dump(s tir.Stmt, depth int) {
	pad := strings.Repeat("  ", depth)
	switch n := s.(type) {
	case *tir.AttrStmt:
		fmt.Printf("%sattr[%s] = %s\n", pad, n.Key, dumpExpr(n.Value))
		dump(n.Body, depth+1)
	case *tir.ProducerRealize:
		fmt.Printf("%srealize %s\n", pad, n.Producer.Name)
		dump(n.Body, depth+1)
	case *tir.ProducerStore:
		fmt.Printf("%sstore %s[%s] = %s\n", pad, n.Producer.Name, dumpExprs(n.Indices), dumpExpr(n.Value))
	case *tir.For:
		fmt.Printf("%sfor %s in [%s, %s)\n", pad, n.Var.Name, dumpExpr(n.Min), dumpExpr(n.Extent))
		dump(n.Body, depth+1)
	case *tir.Evaluate:
		fmt.Printf("%sevaluate %s\n", pad, dumpExpr(n.Value))
	case *tir.SeqStmt:
		for _, c := range n.Stmts {
			dump(c, depth)
		}
	default:
		fmt.Printf("%s<nil>\n", pad)
	}
}

func dumpExprs(es []tir.Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = dumpExpr(e)
	}
	return strings.Join(parts, ", ")
}

func dumpExpr(e tir.Expr) string {
	switch n := e.(type) {
	case *tir.Var:
		return n.Name
	case *tir.IntImm:
		return fmt.Sprintf("%d", n.Value)
	case *tir.FloatImm:
		return fmt.Sprintf("%g", n.Value)
	case *tir.StringImm:
		return fmt.Sprintf("%q", n.Value)
	case *tir.Add:
		return fmt.Sprintf("(%s + %s)", dumpExpr(n.A), dumpExpr(n.B))
	case *tir.Sub:
		return fmt.Sprintf("(%s - %s)", dumpExpr(n.A), dumpExpr(n.B))
	case *tir.Mul:
		return fmt.Sprintf("(%s * %s)", dumpExpr(n.A), dumpExpr(n.B))
	case *tir.Div:
		return fmt.Sprintf("(%s / %s)", dumpExpr(n.A), dumpExpr(n.B))
	case *tir.Cast:
		return fmt.Sprintf("cast<%s>(%s)", n.T, dumpExpr(n.Value))
	case *tir.ProducerLoad:
		return fmt.Sprintf("%s[%s]", n.Producer.Name, dumpExprs(n.Indices))
	case *tir.Call:
		return fmt.Sprintf("%s(%s)", n.Op, dumpExprs(n.Args))
	case nil:
		return "-"
	default:
		return fmt.Sprintf("%v", e)
	}
}
