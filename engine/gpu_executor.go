package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-copy/common"
	"github.com/Carmen-Shannon/oxy-copy/engine/kernel"
	"github.com/Carmen-Shannon/oxy-copy/engine/renderer"
	"github.com/Carmen-Shannon/oxy-copy/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-copy/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-copy/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-copy/internal/logging"
	"github.com/cogentcore/webgpu/wgpu"
)

// CopyPipelineKey is the renderer pipeline key of the copy kernel.
const CopyPipelineKey = "copy_kernel"

// gpuExecutor is the implementation of the GPUExecutor interface.
type gpuExecutor struct {
	mu       sync.Mutex
	renderer renderer.Renderer
	provider bind_group_provider.BindGroupProvider

	outputBinding int
	inputBinding  int

	indirect bool
	label    string
}

// GPUExecutor runs plans on the copy kernel through a Renderer. It owns one bind group
// whose buffers are resized to each job's buffer lengths.
type GPUExecutor interface {
	kernel.Executor

	// Release frees the executor's buffers and bind group. The renderer is not released.
	Release()
}

var _ GPUExecutor = &gpuExecutor{}

// NewCopyPipeline builds the compute pipeline for the embedded copy kernel.
//
// Returns:
//   - pipeline.Pipeline: the unregistered pipeline
//   - error: a shader parse error
func NewCopyPipeline() (pipeline.Pipeline, error) {
	s, err := shader.NewShader(CopyPipelineKey, kernel.CopyKernelSource)
	if err != nil {
		return nil, err
	}
	return pipeline.NewPipeline(CopyPipelineKey,
		pipeline.WithLabel("Copy Kernel"),
		pipeline.WithComputeShader(s),
		pipeline.WithExpectedWorkgroupSize(kernel.WorkgroupSize()),
	), nil
}

// NewGPUExecutor creates an executor that dispatches the copy kernel on r. The copy pipeline
// is registered on r unless it already is.
//
// Parameters:
//   - r: the renderer to run on
//   - options: functional options configuring the executor
//
// Returns:
//   - GPUExecutor: the GPU executor
//   - error: an error if the pipeline could not be built or registered
func NewGPUExecutor(r renderer.Renderer, options ...GPUExecutorBuilderOption) (GPUExecutor, error) {
	e := &gpuExecutor{
		renderer: r,
		label:    "Copy Kernel",
	}
	for _, opt := range options {
		opt(e)
	}

	if r.Pipeline(CopyPipelineKey) == nil {
		p, err := NewCopyPipeline()
		if err != nil {
			return nil, err
		}
		if err := r.RegisterPipelines(p); err != nil {
			return nil, err
		}
	}

	group, outBinding, inBinding, err := resolveCopyBindings(r.Pipeline(CopyPipelineKey).Shader())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", CopyPipelineKey, err)
	}

	e.outputBinding = outBinding
	e.inputBinding = inBinding
	e.provider = bind_group_provider.NewBindGroupProvider(e.label, bind_group_provider.WithGroup(group))
	return e, nil
}

// resolveCopyBindings finds the output and input bindings of a copy shader from its provider
// annotations and checks them against the buffers the executor uploads: both runtime-sized
// AttribData arrays in one group, the output writable and the input read-only.
func resolveCopyBindings(s shader.Shader) (group, output, input int, err error) {
	decls := s.Declarations()
	outGroup, output, ok := shader.BindingFor(decls, shader.AnnotationArgCopyOutput)
	if !ok {
		return 0, 0, 0, fmt.Errorf("no %s binding declared", shader.AnnotationArgCopyOutput)
	}
	inGroup, input, ok := shader.BindingFor(decls, shader.AnnotationArgCopyInput)
	if !ok {
		return 0, 0, 0, fmt.Errorf("no %s binding declared", shader.AnnotationArgCopyInput)
	}
	if outGroup != inGroup {
		return 0, 0, 0, fmt.Errorf("input and output bindings are in different groups (%d, %d)", inGroup, outGroup)
	}

	found := 0
	for _, b := range s.Bindings() {
		if b.Group != outGroup || (b.Binding != output && b.Binding != input) {
			continue
		}
		found++
		if !b.RuntimeSized || b.ElementStride != kernel.AttribDataStride {
			return 0, 0, 0, fmt.Errorf("binding %d (%s %s) is not a runtime-sized AttribData array", b.Binding, b.Name, b.Type)
		}
		if writable := b.Binding == output; b.Writable() != writable {
			return 0, 0, 0, fmt.Errorf("binding %d (%s): writable = %t, want %t", b.Binding, b.Name, b.Writable(), writable)
		}
	}
	if found != 2 {
		return 0, 0, 0, fmt.Errorf("%s and %s must be two distinct buffer bindings", shader.AnnotationArgCopyOutput, shader.AnnotationArgCopyInput)
	}
	return outGroup, output, input, nil
}

func (e *gpuExecutor) Name() string {
	return "gpu"
}

func (e *gpuExecutor) Execute(ctx context.Context, plan *kernel.Plan, input, output []kernel.GPUAttribData) error {
	if err := kernel.CheckBuffers(plan, input, output); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	outSize := uint64(len(output)) * kernel.AttribDataStride
	inSize := uint64(len(input)) * kernel.AttribDataStride

	err := e.renderer.InitBindGroup(CopyPipelineKey, e.provider,
		map[int]wgpu.BufferUsage{e.outputBinding: wgpu.BufferUsageCopySrc},
		map[int]uint64{e.outputBinding: outSize, e.inputBinding: inSize},
	)
	if err != nil {
		return fmt.Errorf("init bind group: %w", err)
	}

	// the current output is uploaded so indices the kernel never writes read back unchanged
	err = e.renderer.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: e.provider, Binding: e.inputBinding, Data: kernel.MarshalAttribData(input)},
		{Provider: e.provider, Binding: e.outputBinding, Data: kernel.MarshalAttribData(output)},
	})
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	if err := e.dispatch(plan.Dispatch); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := e.renderer.ReadBuffer(e.provider.Buffer(e.outputBinding), outSize)
	if err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	records, err := kernel.UnmarshalAttribData(raw)
	if err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	copy(output, records)

	logging.Component("gpu").Debugf("%s: copied %d records through %d byte buffers", plan.Dispatch, len(plan.Written), outSize)
	return nil
}

// dispatch encodes and submits one compute frame running the kernel over d.
func (e *gpuExecutor) dispatch(d kernel.Dispatch) error {
	counts := [3]uint32{d.X, d.Y, d.Z}

	var indirect *wgpu.Buffer
	if e.indirect {
		var err error
		indirect, err = e.renderer.CreateBuffer(e.label+" Indirect Buffer", 0, wgpu.BufferUsageIndirect, common.SliceToBytes(counts[:]))
		if err != nil {
			return fmt.Errorf("indirect buffer: %w", err)
		}
		defer indirect.Release()
	}

	if err := e.renderer.BeginComputeFrame(); err != nil {
		return err
	}
	var err error
	if indirect != nil {
		err = e.renderer.DispatchComputeIndirect(CopyPipelineKey, e.provider, indirect, 0)
	} else {
		err = e.renderer.DispatchCompute(CopyPipelineKey, e.provider, counts)
	}
	endErr := e.renderer.EndComputeFrame()
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	return endErr
}

func (e *gpuExecutor) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.provider.Release()
}
