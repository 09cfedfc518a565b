package asfactl

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var allStepStates = []StepState{StatePending, StateSkipped, StateRunning, StateSucceeded, StateFailed}

// WriteRunMetrics exports rep in the node-exporter textfile format.
func WriteRunMetrics(path, project string, rep Report) error {
	labels := prometheus.Labels{"project": project}
	reg := prometheus.NewRegistry()

	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "asfactl_last_run_timestamp_seconds",
		Help:        "Unix time the last deploy run finished.",
		ConstLabels: labels,
	})
	success := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "asfactl_last_run_success",
		Help:        "1 if the last deploy run completed, 0 if it aborted.",
		ConstLabels: labels,
	})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "asfactl_last_run_duration_seconds",
		Help:        "Wall time of the last deploy run.",
		ConstLabels: labels,
	})
	steps := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "asfactl_step_state",
		Help:        "1 for the state each step ended the last run in.",
		ConstLabels: labels,
	}, []string{"step", "state"})
	stepDuration := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "asfactl_step_duration_seconds",
		Help:        "Wall time of each step in the last run.",
		ConstLabels: labels,
	}, []string{"step"})
	reg.MustRegister(lastRun, success, duration, steps, stepDuration)

	lastRun.Set(float64(rep.Finished.Unix()))
	if rep.Outcome == OutcomeCompleted {
		success.Set(1)
	}
	duration.Set(rep.Finished.Sub(rep.Started).Seconds())
	for _, s := range rep.Steps {
		for _, state := range allStepStates {
			v := 0.0
			if s.State == state {
				v = 1
			}
			steps.WithLabelValues(s.ID, string(state)).Set(v)
		}
		stepDuration.WithLabelValues(s.ID).Set(s.Duration.Seconds())
	}

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
