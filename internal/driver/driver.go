// Package driver orchestrates the compile pipeline: decode a wire module,
// run the lowering passes a target requires, resolve layouts, and hand each
// method to the target's generator. Methods compile concurrently; the shared
// type context and ABI resolver synchronize internally, everything else is
// confined to one goroutine per method.
package driver

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/76creates/ILGPU/internal/abi"
	"github.com/76creates/ILGPU/internal/backend"
	"github.com/76creates/ILGPU/internal/backend/clc"
	"github.com/76creates/ILGPU/internal/backend/cpu"
	"github.com/76creates/ILGPU/internal/backend/ptx"
	"github.com/76creates/ILGPU/internal/ir"
	"github.com/76creates/ILGPU/internal/irenc"
	"github.com/76creates/ILGPU/internal/lower"
	"github.com/76creates/ILGPU/internal/target"
	"github.com/76creates/ILGPU/internal/transform"
	"github.com/76creates/ILGPU/internal/types"
)

// Stage labels one step of a method's pipeline for progress reporting.
type Stage string

const (
	StageBuild    Stage = "build"
	StageLower    Stage = "lower"
	StageLayout   Stage = "layout"
	StageCodegen  Stage = "codegen"
	StageCached   Stage = "cached"
	StageFinished Stage = "finished"
)

// Event is one progress notification. Events for different methods arrive
// from different goroutines; sinks must be safe for concurrent use.
type Event struct {
	Method string
	Stage  Stage
	Err    error
}

// Sink consumes progress events. A nil Sink is allowed everywhere.
type Sink func(Event)

func (s Sink) send(method string, stage Stage, err error) {
	if s != nil {
		s(Event{Method: method, Stage: stage, Err: err})
	}
}

// Request describes one compilation batch: every method of Module for one
// target.
type Request struct {
	Module   *irenc.Module
	Target   target.Description
	Jobs     int
	Cache    *ArtifactCache
	Progress Sink
}

// Artifact is the generated output of one method. Data is nil for methods
// the backend skips (external, intrinsic).
type Artifact struct {
	Method string
	Data   []byte
	Cached bool
}

// Result collects the batch output in module method order.
type Result struct {
	Target    string
	Artifacts []Artifact
}

// Compile runs the batch. The first failing method aborts the remaining
// work and its error is returned, wrapped with the method name.
func Compile(ctx context.Context, req *Request) (*Result, error) {
	if req.Module == nil {
		return nil, fmt.Errorf("driver: nil module")
	}
	if err := req.Target.Validate(); err != nil {
		return nil, err
	}

	tctx := types.NewContext()
	res := abi.NewResolver(tctx, req.Target)

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	artifacts := make([]Artifact, len(req.Module.Methods))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i := range req.Module.Methods {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			name := req.Module.Methods[i].Name
			art, err := compileMethod(req, tctx, res, i)
			if err != nil {
				req.Progress.send(name, StageFinished, err)
				return fmt.Errorf("method %s: %w", name, err)
			}
			artifacts[i] = art
			req.Progress.send(name, StageFinished, nil)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Result{Target: req.Target.Name, Artifacts: artifacts}, nil
}

func compileMethod(req *Request, tctx *types.Context, res *abi.Resolver, i int) (Artifact, error) {
	md := req.Module.Methods[i]

	if req.Cache != nil {
		key, err := req.Cache.Key(req.Target.Name, md)
		if err != nil {
			return Artifact{}, err
		}
		if data, ok, err := req.Cache.Get(key); err != nil {
			return Artifact{}, err
		} else if ok {
			req.Progress.send(md.Name, StageCached, nil)
			return Artifact{Method: md.Name, Data: data, Cached: true}, nil
		}
	}

	req.Progress.send(md.Name, StageBuild, nil)
	m, err := irenc.BuildMethod(tctx, req.Module, i)
	if err != nil {
		return Artifact{}, err
	}

	req.Progress.send(md.Name, StageLower, nil)
	if err := transform.Run(m, passesFor(req.Target, tctx), nil); err != nil {
		return Artifact{}, err
	}

	req.Progress.send(md.Name, StageLayout, nil)
	if err := resolveLayouts(m, res); err != nil {
		return Artifact{}, err
	}

	req.Progress.send(md.Name, StageCodegen, nil)
	gen, err := generatorFor(req.Target, tctx, res)
	if err != nil {
		return Artifact{}, err
	}
	data, err := gen.GenerateMethod(m)
	if err != nil {
		return Artifact{}, err
	}

	if req.Cache != nil && data != nil {
		key, err := req.Cache.Key(req.Target.Name, md)
		if err != nil {
			return Artifact{}, err
		}
		if err := req.Cache.Put(key, data); err != nil {
			return Artifact{}, err
		}
	}
	return Artifact{Method: md.Name, Data: data}, nil
}

// passesFor selects the lowering pipeline of a backend. The opencl and cpu
// generators keep views first-class; ptx holds everything in registers and
// needs both views and arrays decomposed.
func passesFor(desc target.Description, tctx *types.Context) []transform.Pass {
	switch desc.Backend {
	case "ptx":
		return []transform.Pass{
			lower.NewViewLowering(tctx),
			lower.NewArrayLowering(tctx),
		}
	default:
		return []transform.Pass{lower.NewViewLowering(tctx)}
	}
}

func generatorFor(desc target.Description, tctx *types.Context, res *abi.Resolver) (backend.Generator, error) {
	switch desc.Backend {
	case "ptx":
		return ptx.New(tctx, desc, res), nil
	case "clc":
		return clc.New(tctx, desc), nil
	case "cpu":
		return cpu.New(tctx, desc), nil
	}
	return nil, fmt.Errorf("driver: target %s names unknown backend %q", desc.Name, desc.Backend)
}

// resolveLayouts forces parameter and return layouts through the resolver so
// unsupported shapes fail in the layout stage, attributed to the method,
// instead of surfacing mid-generation.
func resolveLayouts(m *ir.Method, res *abi.Resolver) error {
	tctx := m.TypeContext()
	for _, p := range m.Params() {
		if _, err := res.Resolve(m.TypeOf(p)); err != nil {
			return err
		}
	}
	if m.ReturnType() != tctx.Void() {
		if _, err := res.Resolve(m.ReturnType()); err != nil {
			return err
		}
	}
	return nil
}
