// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessed counts worker outcomes by terminal disposition.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docforge_jobs_processed_total",
		Help: "Format jobs processed, labelled by outcome.",
	}, []string{"outcome"})

	// DuplicateTerminal counts deliveries that raced a job already in a
	// terminal state. A nonzero rate is normal under at-least-once
	// delivery; a high rate points at a publisher or ack problem.
	DuplicateTerminal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docforge_duplicate_terminal_total",
		Help: "Deliveries observed for jobs already COMPLETED or FAILED.",
	})

	// TextIntegrityViolations counts engine-detected text mismatches.
	// Any increment is a defect report.
	TextIntegrityViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docforge_text_integrity_violations_total",
		Help: "Transformations rejected because extracted text changed.",
	})
)
