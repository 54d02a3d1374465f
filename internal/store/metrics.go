package store

import "expvar"

var (
	metricConnectTotal       = expvar.NewInt("store_connect_total")
	metricConnectErrorsTotal = expvar.NewInt("store_connect_errors_total")
	metricBackoffSkipTotal   = expvar.NewInt("store_backoff_skip_total")
	metricFailureTotal       = expvar.NewInt("store_failure_total")
	metricVersionPublished   = expvar.NewInt("store_version_published_total")
)
