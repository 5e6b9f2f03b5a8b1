package domain

import "time"

// Health statuses, from best to worst. A report takes the worst status of its
// checks; a failing critical check always makes it HealthStatusError.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// WorseHealth returns the less healthy of a and b. Unrecognised statuses
// count as degraded and the empty status counts as ok.
func WorseHealth(a, b string) string {
	if healthRank(b) > healthRank(a) {
		return normaliseHealth(b)
	}
	return normaliseHealth(a)
}

func healthRank(status string) int {
	switch status {
	case HealthStatusOK, "":
		return 0
	case HealthStatusError:
		return 2
	}
	return 1
}

func normaliseHealth(status string) string {
	return [...]string{HealthStatusOK, HealthStatusDegraded, HealthStatusError}[healthRank(status)]
}

// SystemHealthCheck is one dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport is what /readyz serves.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
