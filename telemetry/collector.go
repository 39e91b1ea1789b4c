package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/flap/neural"
)

// Collector bundles the Prometheus metrics of a training run and receives
// every generation as a neural.Reporter.
type Collector struct {
	gatherer prometheus.Gatherer

	Generations      prometheus.Counter
	InvalidActions   prometheus.Counter
	ActivationErrors prometheus.Counter

	BestFitness     prometheus.Gauge
	MeanFitness     prometheus.Gauge
	BestEver        prometheus.Gauge
	Species         prometheus.Gauge
	GenerationTicks prometheus.Gauge

	GenerationDuration prometheus.Histogram
}

// NewCollector registers the evolution metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	if c.Generations, err = registerCounter(reg, "flap_generations_total",
		"Total number of evaluated generations."); err != nil {
		return nil, err
	}
	if c.InvalidActions, err = registerCounter(reg, "flap_invalid_actions_total",
		"Controller decisions outside the action set, ignored by the runner."); err != nil {
		return nil, err
	}
	if c.ActivationErrors, err = registerCounter(reg, "flap_activation_errors_total",
		"Network activations that failed during evaluation."); err != nil {
		return nil, err
	}

	if c.BestFitness, err = registerGauge(reg, "flap_generation_best_fitness",
		"Fitness of the last generation's champion."); err != nil {
		return nil, err
	}
	if c.MeanFitness, err = registerGauge(reg, "flap_generation_mean_fitness",
		"Mean fitness of the last generation."); err != nil {
		return nil, err
	}
	if c.BestEver, err = registerGauge(reg, "flap_best_fitness_ever",
		"Best fitness seen in the run."); err != nil {
		return nil, err
	}
	if c.Species, err = registerGauge(reg, "flap_species",
		"Number of species after speciation."); err != nil {
		return nil, err
	}
	if c.GenerationTicks, err = registerGauge(reg, "flap_generation_ticks",
		"Ticks simulated by the last generation."); err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flap_generation_duration_seconds",
		Help:    "Wall time of one generation including evaluation and reporting.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
	if err := reg.Register(duration); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(prometheus.Histogram)
		if !ok {
			return nil, fmt.Errorf("collector flap_generation_duration_seconds already registered with incompatible type")
		}
		duration = existing
	}
	c.GenerationDuration = duration

	return c, nil
}

// ReportGeneration updates every metric from one generation.
func (c *Collector) ReportGeneration(_ context.Context, r *neural.GenerationReport) error {
	if c == nil {
		return nil
	}

	c.Generations.Inc()
	c.ActivationErrors.Add(float64(r.ActivationErrors))
	c.BestFitness.Set(r.ChampionFitness)
	c.BestEver.Set(r.BestEver)
	c.Species.Set(float64(r.Species.Count))
	c.GenerationDuration.Observe(r.Duration.Seconds())

	if r.Result != nil {
		c.InvalidActions.Add(float64(r.Result.InvalidActions))
		c.GenerationTicks.Set(float64(r.Result.Ticks))
		if fitness := r.Result.Fitness(); len(fitness) > 0 {
			c.MeanFitness.Set(stat.Mean(fitness, nil))
		}
	}
	return nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, name, help string) (prometheus.Counter, error) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, name, help string) (prometheus.Gauge, error) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
