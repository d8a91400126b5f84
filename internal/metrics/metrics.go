package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tpg"

// Collectors groups the counters emitted by the interpreter, the mutation
// operators and the learner lifecycle. A nil *Collectors records nothing.
type Collectors struct {
	Mutations       *prometheus.CounterVec
	InvalidOps      prometheus.Counter
	NonFiniteResets prometheus.Counter
	LearnersCreated *prometheus.CounterVec
}

// New builds the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests usually want.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Program mutations applied, by operator.",
		}, []string{"operator"}),
		InvalidOps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_operator_total",
			Help:      "Instructions skipped because their encoding did not decode.",
		}),
		NonFiniteResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nonfinite_resets_total",
			Help:      "Register writes reset to zero after producing NaN or Inf.",
		}),
		LearnersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "learners_created_total",
			Help:      "Learners constructed, by construction mode.",
		}, []string{"mode"}),
	}
	if reg == nil {
		return c, nil
	}
	for _, collector := range []prometheus.Collector{c.Mutations, c.InvalidOps, c.NonFiniteResets, c.LearnersCreated} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collectors) Mutation(operator string) {
	if c == nil {
		return
	}
	c.Mutations.WithLabelValues(operator).Inc()
}

func (c *Collectors) InvalidOperator() {
	if c == nil {
		return
	}
	c.InvalidOps.Inc()
}

func (c *Collectors) NonFiniteReset() {
	if c == nil {
		return
	}
	c.NonFiniteResets.Inc()
}

func (c *Collectors) LearnerCreated(mode string) {
	if c == nil {
		return
	}
	c.LearnersCreated.WithLabelValues(mode).Inc()
}
