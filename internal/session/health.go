package session

import (
	"context"
	"fmt"
	"time"
)

const healthDown = "down"

// HealthCheck 一次后端健康检查
type HealthCheck struct {
	backend Backend
	timeout time.Duration
}

type HealthResult struct {
	Status string
	Err    error
}

func (h *HealthCheck) Run(ctx context.Context) HealthResult {
	ctx, cancel := withTimeout(ctx, h.timeout)
	defer cancel()
	resp, err := h.backend.Health(ctx)
	if err != nil {
		return HealthResult{Err: err}
	}
	return HealthResult{Status: resp.Status}
}

func (s *Session) BeginHealth() *HealthCheck {
	return &HealthCheck{backend: s.backend, timeout: s.opts.RequestTimeout}
}

// FinishHealth 记录健康状态。verbose 为 true 时把结果写入消息记录
func (s *Session) FinishHealth(res HealthResult, verbose bool) {
	if res.Err != nil {
		s.health = healthDown
		s.logger.Warn("health check failed", "error", res.Err)
		if verbose {
			s.append(RoleError, errorText(res.Err, MsgBackendDown))
		}
		return
	}
	s.health = res.Status
	if verbose {
		s.append(RoleSystem, fmt.Sprintf("Backend status: %s", res.Status))
	}
}

// CheckHealth 同步检查后端状态并写入消息记录
func (s *Session) CheckHealth(ctx context.Context) {
	s.FinishHealth(s.BeginHealth().Run(ctx), true)
}
