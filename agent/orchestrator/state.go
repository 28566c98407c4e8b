package orchestrator

import (
	"time"

	contractx "github.com/cyberforge26/firmware-forge/agent/contract"
)

func (h *runHandle) setRunning(stage string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.Status = contractx.StatusRunning
	h.state.CurrentStage = stage
}

func (h *runHandle) setStage(stage string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.CurrentStage = stage
}

func (h *runHandle) advance(weight int, stage string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.Progress += weight
	if h.state.Progress > 100 {
		h.state.Progress = 100
	}
	h.state.CurrentStage = stage
}

func (h *runHandle) warn(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.Warnings = append(h.state.Warnings, msg)
}

func (h *runHandle) fail(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.Status = contractx.StatusFailed
	h.state.Errors = append(h.state.Errors, msg)
	now := time.Now().UTC()
	h.state.CompletedAt = &now
}

func (h *runHandle) complete() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.Status = contractx.StatusCompleted
	h.state.Progress = 100
	now := time.Now().UTC()
	h.state.CompletedAt = &now
}

func (h *runHandle) isCancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}
