// Package sim executes generated kernels on the host. It interprets the
// kernel IR directly with WGSL typing and arithmetic: compute dispatches run
// one goroutine per invocation with real workgroup barriers, fragment
// programs run once per output texel.
//
// The simulator is the reference device for tests: every numeric property
// of a generated program can be checked against a CPU implementation
// without a GPU.
package sim

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/born-ml/gpgpu/internal/ir"
	"github.com/born-ml/gpgpu/internal/shader"
	"github.com/born-ml/gpgpu/internal/texture"
)

// Run dispatches prog over its whole output and returns the output texture.
// Inputs are keyed by binding name.
func Run(prog *shader.Program, inputs map[string]*texture.Texture) (*texture.Texture, error) {
	return RunContext(context.Background(), prog, inputs)
}

// RunContext is Run with cancellation between workgroups.
func RunContext(ctx context.Context, prog *shader.Program, inputs map[string]*texture.Texture) (*texture.Texture, error) {
	out := texture.ForShape(prog.Output)
	m, err := newMachine(prog.Module, inputs, out)
	if err != nil {
		return nil, err
	}
	entry := prog.Module.Entry()
	if entry == nil {
		return nil, fmt.Errorf("sim: %s has no entry point", prog.Name)
	}
	if entry.Stage == ir.Fragment {
		err = m.draw(ctx, entry, out)
	} else {
		err = m.dispatch(ctx, entry, prog.Dispatch)
	}
	if err != nil {
		return nil, fmt.Errorf("sim: %s: %w", prog.Name, err)
	}
	return out, nil
}

// Execute encodes row-major input values (in binding order), runs prog and
// decodes the output.
func Execute(ctx context.Context, prog *shader.Program, values ...[]float32) ([]float32, error) {
	inputs, err := Encode(prog, values...)
	if err != nil {
		return nil, err
	}
	out, err := RunContext(ctx, prog, inputs)
	if err != nil {
		return nil, err
	}
	return texture.Decode(prog.Output, out)
}

// Encode lays out row-major input values in textures keyed by binding name.
func Encode(prog *shader.Program, values ...[]float32) (map[string]*texture.Texture, error) {
	if len(values) != len(prog.Inputs) {
		return nil, fmt.Errorf("sim: %s takes %d inputs, got %d", prog.Name, len(prog.Inputs), len(values))
	}
	inputs := make(map[string]*texture.Texture, len(values))
	for i, in := range prog.Inputs {
		tex, err := texture.Encode(in.Shape, values[i])
		if err != nil {
			return nil, fmt.Errorf("sim: input %s: %w", in.Name, err)
		}
		inputs[in.Name] = tex
	}
	return inputs, nil
}

// protect runs f, turning an aborted invocation into an error.
func protect(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(execError)
			if !ok {
				panic(r)
			}
			err = e.err
		}
	}()
	f()
	return nil
}

func (m *machine) dispatch(ctx context.Context, entry *ir.EntryPoint, groups [3]int) error {
	size := entry.WorkgroupSize
	if size[0]*size[1]*size[2] == 0 || groups[0]*groups[1]*groups[2] == 0 {
		return errors.New("empty dispatch")
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
loop:
	for z := range groups[2] {
		for y := range groups[1] {
			for x := range groups[0] {
				if gctx.Err() != nil {
					break loop
				}
				wg := [3]int{x, y, z}
				g.Go(func() error {
					return m.workgroup(entry, wg)
				})
			}
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// workgroup runs every invocation of one workgroup concurrently so that
// barriers synchronise them.
func (m *machine) workgroup(entry *ir.EntryPoint, id [3]int) error {
	size := entry.WorkgroupSize
	n := size[0] * size[1] * size[2]
	shared := m.newShared()
	b := newBarrier(n)

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for i := range n {
		local := [3]int{i % size[0], (i / size[0]) % size[1], i / (size[0] * size[1])}
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv := m.newInvocation(shared, b)
			inv.builtins[ir.BuiltinLocalID] = UVec(local[0], local[1], local[2])
			inv.builtins[ir.BuiltinWorkgroupID] = UVec(id[0], id[1], id[2])
			inv.builtins[ir.BuiltinGlobalID] = UVec(
				id[0]*size[0]+local[0], id[1]*size[1]+local[1], id[2]*size[2]+local[2])
			err := protect(func() { inv.execBlock(entry.Body, newScope(nil)) })
			if err != nil {
				once.Do(func() {
					firstErr = fmt.Errorf("workgroup %v local %v: %w", id, local, err)
				})
				b.abort(err)
				return
			}
			b.exit()
		}()
	}
	wg.Wait()
	return firstErr
}

func (m *machine) draw(ctx context.Context, entry *ir.EntryPoint, out *texture.Texture) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for row := range out.Rows {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			for col := range out.Cols {
				inv := m.newInvocation(nil, nil)
				inv.builtins[ir.BuiltinFragCoord] = FVec(float32(col)+0.5, float32(row)+0.5, 0, 1)
				var v Value
				err := protect(func() { _, v = inv.execBlock(entry.Body, newScope(nil)) })
				if err != nil {
					return fmt.Errorf("texel (%d, %d): %w", row, col, err)
				}
				if v.T != ir.TVec4F {
					return fmt.Errorf("texel (%d, %d): fragment returned %s", row, col, v.T)
				}
				out.SetTexel(row, col, v.F)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Env is the state a single function call runs against.
type Env struct {
	// Inputs are bound textures and uniforms keyed by binding name.
	Inputs map[string]*texture.Texture
	// Output receives textureStore writes.
	Output *texture.Texture
	// Privates overrides private globals such as the invocation ids.
	Privates map[string]Value
}

// Call runs function fn of m once with the given arguments.
func Call(m *ir.Module, fn string, env Env, args ...Value) (Value, error) {
	mach, err := newMachine(m, env.Inputs, env.Output)
	if err != nil {
		return Value{}, err
	}
	f, ok := mach.funcs[fn]
	if !ok {
		return Value{}, fmt.Errorf("sim: no function %s", fn)
	}
	inv := mach.newInvocation(mach.newShared(), nil)
	for name, v := range env.Privates {
		p, ok := inv.privates[name]
		if !ok {
			return Value{}, fmt.Errorf("sim: no private global %s", name)
		}
		if p.T != v.T {
			return Value{}, fmt.Errorf("sim: private %s is %s, got %s", name, p.T, v.T)
		}
		*p = v.clone()
	}
	var out Value
	if err := protect(func() { out = inv.invoke(f, args) }); err != nil {
		return Value{}, fmt.Errorf("sim: %s: %w", fn, err)
	}
	return out, nil
}
