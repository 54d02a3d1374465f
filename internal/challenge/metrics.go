package challenge

import "expvar"

var (
	metricCreatedTotal          = expvar.NewInt("challenge_created_total")
	metricUpdatedTotal          = expvar.NewInt("challenge_updated_total")
	metricDroppedTotal          = expvar.NewInt("challenge_dropped_updates_total")
	metricWriteErrorsTotal      = expvar.NewInt("challenge_write_errors_total")
	metricCycleTotal            = expvar.NewInt("challenge_cycle_total")
	metricInvalidDocumentsTotal = expvar.NewInt("challenge_invalid_documents_total")
	metricDivergenceTotal       = expvar.NewInt("challenge_divergence_total")
	metricEvictedTotal          = expvar.NewInt("challenge_evicted_total")
)
