// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package program_test

import (
	"context"
	"fmt"
	"log"

	"github.com/born-ml/gpgpu/program"
)

func ExampleCompiler_Unary() {
	c, err := program.NewCompiler(program.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}
	x := program.NewInfo(program.Shape{2, 2}, false, 0)
	prog, err := c.Unary(program.Activation{Kind: program.ReLU}, x, program.Mode{Access: program.Indexed})
	if err != nil {
		log.Fatal(err)
	}
	out, err := program.Simulate(context.Background(), prog, []float32{-1, 2, -3, 4})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(prog.Name, out)
	// Output: unary_relu [0 2 0 4]
}
