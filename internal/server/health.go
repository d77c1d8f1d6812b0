package server

import (
	"context"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/logging"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// StatusSetter is the part of health.Server the reporter drives.
type StatusSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// Check probes one dependency. Name doubles as the health service name.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Reporter runs checks on a ticker and publishes their results. The overall
// status (service "") is SERVING only when every check passes.
type Reporter struct {
	checks   []Check
	status   StatusSetter
	interval time.Duration
	timeout  time.Duration
	logger   logging.Logger

	last map[string]bool
}

func NewReporter(status StatusSetter, interval, timeout time.Duration, l logging.Logger, checks ...Check) *Reporter {
	return &Reporter{
		checks:   checks,
		status:   status,
		interval: interval,
		timeout:  timeout,
		logger:   l.With("module", "health"),
		last:     map[string]bool{},
	}
}

// CheckOnce runs every check and updates the published statuses.
func (r *Reporter) CheckOnce(ctx context.Context) bool {
	all := true
	for _, c := range r.checks {
		cctx, cancel := context.WithTimeout(ctx, r.timeout)
		err := c.Probe(cctx)
		cancel()

		ok := err == nil
		all = all && ok
		r.publish(c.Name, ok)

		if prev, seen := r.last[c.Name]; !seen || prev != ok {
			if ok {
				r.logger.Info(ctx, "dependency healthy", "check", c.Name)
			} else {
				r.logger.Warn(ctx, "dependency unhealthy", "check", c.Name, "error", err)
			}
		}
		r.last[c.Name] = ok
	}
	r.publish("", all)
	return all
}

func (r *Reporter) publish(service string, ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	r.status.SetServingStatus(service, st)
}

// Run checks immediately and then on every tick until ctx is done.
func (r *Reporter) Run(ctx context.Context) {
	r.CheckOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.CheckOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}
