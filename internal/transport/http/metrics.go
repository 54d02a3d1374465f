package httptransport

import "expvar"

var (
	metricChallengeRequestsTotal = expvar.NewInt("http_challenge_requests_total")
	metricChallengeErrorsTotal   = expvar.NewInt("http_challenge_errors_total")

	metricWaitActive = expvar.NewInt("http_wait_active")
	metricWaitTotal  = expvar.NewInt("http_wait_total")

	metricPresenceQueriesTotal = expvar.NewInt("http_presence_queries_total")
)
