package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	ledger  Pinger
	content Pinger
}

// New creates a Service. content can be nil.
func New(ledger, content Pinger) *Service {
	return &Service{ledger: ledger, content: content}
}

// Check runs health checks against all components. A failing ledger is unhealthy; a failing
// content check is degraded.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks["ledger"] = result(s.ledger.Ping(ctx))
	if s.content != nil {
		checks["content"] = result(s.content.Ping(ctx))
	}

	status := Healthy
	switch {
	case checks["ledger"] == CheckError:
		status = Unhealthy
	case checks["content"] == CheckError:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
