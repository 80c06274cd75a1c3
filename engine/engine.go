package engine

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/passgraph/engine/assets"
	"github.com/spaghettifunk/passgraph/engine/assets/loaders"
	"github.com/spaghettifunk/passgraph/engine/core"
	"github.com/spaghettifunk/passgraph/engine/platform"
	"github.com/spaghettifunk/passgraph/engine/renderer/vulkan"
	"golang.org/x/sync/errgroup"
)

type Stage uint8

const (
	// Engine has no device
	EngineStageUninitialized Stage = iota
	// Engine owns a Vulkan device
	EngineStageInitialized
	// Engine is watching an asset directory
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// Report is the outcome of processing one pass file.
type Report struct {
	Path string
	Pass *loaders.PassDescription
	Plan *vulkan.Plan
	// Compiled is set when the pass was built on a device.
	Compiled bool
	Elapsed  time.Duration
}

type Engine struct {
	currentStage Stage
	config       *core.Config
	platform     *platform.Platform
	context      *vulkan.VulkanContext
}

func New(cfg *core.Config) *Engine {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	return &Engine{
		currentStage: EngineStageUninitialized,
		config:       cfg,
		platform:     platform.New(),
	}
}

// Plan derives the plans of the given pass files concurrently. Reports are
// returned in the order of paths.
func (e *Engine) Plan(ctx context.Context, paths ...string) ([]*Report, error) {
	reports := make([]*Report, len(paths))
	group, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			report, err := planFile(&loaders.PassLoader{}, path)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func planFile(loader *loaders.PassLoader, path string) (*Report, error) {
	clock := core.NewClock()
	clock.Start()

	res, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	desc := res.Data.(*loaders.PassDescription)
	plan, err := desc.Plan()
	if err != nil {
		return nil, errors.Wrapf(err, "pass %s", path)
	}

	clock.Stop()
	return &Report{Path: path, Pass: desc, Plan: plan, Elapsed: clock.Elapsed()}, nil
}

// Compile builds every pass file on the Vulkan device, one at a time, and
// destroys the result. The device is created on first use.
func (e *Engine) Compile(paths ...string) ([]*Report, error) {
	if err := e.initialize(); err != nil {
		return nil, err
	}
	reports := make([]*Report, 0, len(paths))
	for _, path := range paths {
		report, err := compileFile(e.context.Device, path)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func compileFile(device vulkan.Device, path string) (*Report, error) {
	clock := core.NewClock()
	clock.Start()

	loader := &loaders.PassLoader{Device: device}
	res, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	defer loader.Unload(res)

	desc := res.Data.(*loaders.PassDescription)
	renderPass, err := desc.Compile(device)
	if err != nil {
		return nil, errors.Wrapf(err, "pass %s", path)
	}
	plan := renderPass.Plan()
	renderPass.Destroy()

	clock.Stop()
	core.LogInfo("pass %s compiled: %d subpasses in %s", desc.Name, len(desc.Subpasses), clock.Elapsed())
	return &Report{Path: path, Pass: desc, Plan: plan, Compiled: true, Elapsed: clock.Elapsed()}, nil
}

// Watch processes every pass file under dir, then again each time a pass file
// or shader changes, until ctx is done. Passes are compiled on the device when
// renderer.compile_on_watch is set, planned otherwise. Failures are handed to
// onReport with a nil report and do not stop the watch.
func (e *Engine) Watch(ctx context.Context, dir string, onReport func(*Report, error)) error {
	var device vulkan.Device
	if e.config.Renderer.CompileOnWatch {
		if err := e.initialize(); err != nil {
			return err
		}
		device = e.context.Device
	}

	am, err := assets.NewAssetManager()
	if err != nil {
		return err
	}
	defer am.Shutdown()
	if err := am.Initialize(dir, nil); err != nil {
		return err
	}
	e.currentStage = EngineStageRunning
	defer func() {
		if e.context != nil {
			e.currentStage = EngineStageInitialized
		} else {
			e.currentStage = EngineStageUninitialized
		}
	}()

	process := func(path string) {
		var (
			report *Report
			err    error
		)
		if device != nil {
			report, err = compileFile(device, path)
		} else {
			report, err = planFile(&loaders.PassLoader{}, path)
		}
		if err != nil {
			core.LogError("%s", err)
		}
		onReport(report, err)
	}
	processAll := func() {
		for _, path := range am.Assets(loaders.ResourceTypePass) {
			process(path)
		}
	}

	processAll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-am.Changes():
			if !ok {
				return nil
			}
			if change.Removed {
				core.LogInfo("%s %s removed", change.Type, change.Path)
				continue
			}
			switch change.Type {
			case loaders.ResourceTypePass:
				process(change.Path)
			case loaders.ResourceTypeShader:
				res, err := am.LoadAsset(change.Path)
				if err != nil {
					core.LogError("%s", err)
					onReport(nil, err)
					continue
				}
				am.UnloadAsset(res)
				// Any pass may use the shader.
				processAll()
			}
		case err, ok := <-am.Errors():
			if !ok {
				return nil
			}
			onReport(nil, err)
		}
	}
}

func (e *Engine) initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return nil
	}
	if err := e.platform.Startup(); err != nil {
		return err
	}
	procAddr, err := e.platform.VulkanProcAddr()
	if err != nil {
		return err
	}
	vc, err := vulkan.NewVulkanContext(e.config.Renderer, procAddr)
	if err != nil {
		e.platform.Shutdown()
		return err
	}
	e.context = vc
	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	if e.context != nil {
		e.context.Destroy()
		e.context = nil
	}
	err := e.platform.Shutdown()
	e.currentStage = EngineStageUninitialized
	return err
}
