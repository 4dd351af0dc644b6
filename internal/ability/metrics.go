package ability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/timgst1/adminguard/internal/model"
)

var checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "adminguard_ability_checks_total",
	Help: "Total number of ability checks by action and result",
}, []string{"action", "result"})

func recordCheck(action model.Action, d Decision) {
	result := "deny"
	if d.Allowed {
		result = "allow"
	}
	checksTotal.WithLabelValues(string(action), result).Inc()
}
