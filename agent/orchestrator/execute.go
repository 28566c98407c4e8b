package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	contractx "github.com/cyberforge26/firmware-forge/agent/contract"
)

func (o *Orchestrator) agentTimeout(opts contractx.GenerateOptions) time.Duration {
	if opts.ModelProvider == contractx.ModelProviderReal {
		return defaultRealTimeout
	}
	return defaultMockTimeout
}

func (o *Orchestrator) runContext(handle *runHandle) *contractx.RunContext {
	return &contractx.RunContext{
		Run:         handle.run,
		MCP:         o.cfg.MCP,
		Store:       o.cfg.Store,
		Retrieval:   o.cfg.Retrieval,
		LM:          handle.lm,
		Prompts:     o.cfg.Prompts,
		HasCompiler: o.hasCompiler,
	}
}

func (o *Orchestrator) execute(handle *runHandle) {
	ctx := context.Background()
	timeout := o.agentTimeout(handle.run.Options)

	handle.setRunning("architecture")

	rc := o.runContext(handle)

	if _, err := runWithTimeout(ctx, timeout, o.cfg.Architecture, rc, nil); err != nil {
		handle.fail(fmt.Sprintf("architecture: %v", err))
		return
	}
	handle.advance(weightArchitecture, "architecture")

	if handle.run.Specification.ArchitectureOnly {
		handle.complete()
		return
	}

	if handle.isCancelled() {
		handle.fail("cancelled")
		return
	}

	if len(handle.run.Specification.Modules) == 0 {
		handle.warn("zero modules in specification: quality and build stages skipped")
		handle.complete()
		return
	}

	handle.setStage("code")
	codeOK, codeFailed := o.runPerModule(ctx, handle, o.cfg.Code, timeout, handle.run.Specification.Modules, weightCodeTotal)
	if len(codeFailed) > 0 {
		handle.warn(fmt.Sprintf("code generation failed for modules: %v", codeFailed))
	}
	if len(codeOK) == 0 {
		handle.fail("no module produced code successfully")
		return
	}
	if len(codeFailed) > 0 && handle.run.Specification.SafetyCritical {
		handle.fail(fmt.Sprintf("safety-critical run cannot tolerate module failures: %v", codeFailed))
		return
	}

	if handle.isCancelled() {
		handle.fail("cancelled")
		return
	}

	handle.setStage("test")
	testOK, testFailed := o.runPerModule(ctx, handle, o.cfg.Test, timeout, modulesByID(handle.run.Specification.Modules, codeOK), weightTestTotal)
	if len(testFailed) > 0 {
		handle.warn(fmt.Sprintf("test generation failed for modules: %v", testFailed))
	}
	if len(testOK) == 0 {
		handle.fail("no module produced tests successfully")
		return
	}

	if handle.isCancelled() {
		handle.fail("cancelled")
		return
	}

	handle.setStage("quality_and_build")
	// quality and build both walk rc.Run.Specification.Modules directly
	// and tolerate per-module artifacts that never showed up (flagging
	// or skipping them rather than erroring), so the full, unfiltered
	// specification goes through here rather than just the modules that
	// survived code+test. That is what lets build_log's module count be
	// compared against the original specification below.
	fullRC := o.runContext(handle)
	fullRC.Run = handle.run

	var wg sync.WaitGroup
	var qualityErr, buildErr error
	var buildResult contractx.AgentResult
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, qualityErr = runWithTimeout(ctx, timeout, o.cfg.Quality, fullRC, nil)
	}()
	go func() {
		defer wg.Done()
		buildResult, buildErr = runWithTimeout(ctx, timeout, o.cfg.Build, fullRC, nil)
	}()
	wg.Wait()

	if qualityErr != nil {
		handle.warn(fmt.Sprintf("quality: %v", qualityErr))
	}
	handle.advance(weightQuality, "build")
	if buildErr != nil {
		handle.warn(fmt.Sprintf("build: %v", buildErr))
	}
	handle.advance(weightBuild, "build")

	if qualityErr != nil || buildErr != nil {
		handle.fail("quality or build stage did not complete")
		return
	}

	totalModules, _ := buildResult.Metadata["total_modules"].(int)
	modulesBuilt, _ := buildResult.Metadata["modules_built"].(int)
	if totalModules != modulesBuilt {
		handle.fail(fmt.Sprintf("build_log required %d module(s) per specification but only %d were built", totalModules, modulesBuilt))
		return
	}

	handle.complete()
}

// runPerModule fans out one agent invocation per module with a
// bounded worker pool, returning the module ids that succeeded and
// the ones that failed. A failure never aborts sibling modules.
func (o *Orchestrator) runPerModule(ctx context.Context, handle *runHandle, agent contractx.Agent, timeout time.Duration, modules []contractx.Module, totalWeight int) (ok, failed []string) {
	if len(modules) == 0 {
		return nil, nil
	}

	concurrency := len(modules)
	if concurrency > maxModuleConcurrency {
		concurrency = maxModuleConcurrency
	}
	sem := make(chan struct{}, concurrency)

	var mu sync.Mutex
	var wg sync.WaitGroup
	rc := o.runContext(handle)
	perModule := totalWeight / len(modules)

	for _, mod := range modules {
		wg.Add(1)
		sem <- struct{}{}
		go func(m contractx.Module) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := runWithTimeout(ctx, timeout, agent, rc, m)

			mu.Lock()
			if err != nil {
				failed = append(failed, m.ID)
			} else {
				ok = append(ok, m.ID)
			}
			mu.Unlock()

			handle.advance(perModule, agent.AgentID())
		}(mod)
	}
	wg.Wait()

	return ok, failed
}

// runWithTimeout invokes one agent under the per-invocation timeout. A
// panic inside the agent is recovered here and returned as ErrInternal
// so it fails only that stage.
func runWithTimeout(ctx context.Context, timeout time.Duration, agent contractx.Agent, rc *contractx.RunContext, inputs any) (result contractx.AgentResult, err error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			result = contractx.AgentResult{}
			err = fmt.Errorf("%w: %s panicked: %v", contractx.ErrInternal, agent.AgentID(), r)
		}
	}()

	result, err = agent.Execute(callCtx, rc, inputs)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return contractx.AgentResult{}, fmt.Errorf("%w: timeout:%s", contractx.ErrTimeout, agent.AgentID())
		}
		return contractx.AgentResult{}, err
	}
	return result, nil
}

// modulesByID resolves a set of module ids (as runPerModule returns
// them) back to the contractx.Module values the next fan-out stage
// needs.
func modulesByID(all []contractx.Module, ids []string) []contractx.Module {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []contractx.Module
	for _, m := range all {
		if want[m.ID] {
			out = append(out, m)
		}
	}
	return out
}
