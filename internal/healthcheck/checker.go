// Package healthcheck evaluates readiness checks for the service.
package healthcheck

import (
	"context"
	"strings"

	"github.com/memohai/lineassist/internal/config"
)

const (
	// StatusOK indicates check passed.
	StatusOK = "ok"
	// StatusWarn indicates the service runs degraded.
	StatusWarn = "warn"
	// StatusError indicates the service cannot serve traffic.
	StatusError = "error"
)

// CheckResult is one readiness check item.
type CheckResult struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Summary string `json:"summary"`
}

// Checker evaluates one or more readiness checks.
type Checker interface {
	ListChecks(ctx context.Context) []CheckResult
}

// Ready reports whether no result has StatusError.
func Ready(results []CheckResult) bool {
	for _, r := range results {
		if r.Status == StatusError {
			return false
		}
	}
	return true
}

// Run collects results from every checker in order. Nil checkers are skipped.
func Run(ctx context.Context, checkers ...Checker) []CheckResult {
	out := make([]CheckResult, 0, len(checkers))
	for _, c := range checkers {
		if c == nil {
			continue
		}
		out = append(out, c.ListChecks(ctx)...)
	}
	return out
}

// CredentialsChecker reports missing platform and provider credentials. A
// missing credential degrades the service but does not make it unready.
type CredentialsChecker struct {
	cfg config.Config
}

func NewCredentialsChecker(cfg config.Config) *CredentialsChecker {
	return &CredentialsChecker{cfg: cfg}
}

func (c *CredentialsChecker) ListChecks(context.Context) []CheckResult {
	return []CheckResult{
		credentialCheck("line.channel_access_token", c.cfg.Line.ChannelAccessToken, "content retrieval and replies"),
		credentialCheck("openai.api_key", c.cfg.OpenAI.APIKey, "AI analysis"),
	}
}

func credentialCheck(id, value, feature string) CheckResult {
	if strings.TrimSpace(value) == "" {
		return CheckResult{ID: id, Status: StatusWarn, Summary: "not configured; " + feature + " will fail"}
	}
	return CheckResult{ID: id, Status: StatusOK, Summary: "configured"}
}
