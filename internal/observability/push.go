package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
)

// Push sends the current metric values to a Prometheus Pushgateway under the
// given job name. Batch commands call it once before exiting.
func Push(ctx context.Context, gatewayURL, job string, m *Metrics) error {
	p := push.New(gatewayURL, job)
	for _, c := range m.Collectors() {
		p = p.Collector(c)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
