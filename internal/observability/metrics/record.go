package metrics

import (
	"strconv"
	"time"
)

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordHTTPRequest records a finished request against its route pattern.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordConversion counts a conversion outcome.
func RecordConversion(result string) {
	ConversionsTotal.WithLabelValues(result).Inc()
}

// RecordCacheLookup counts a cache read in the given state.
func RecordCacheLookup(state string) {
	RateCacheLookups.WithLabelValues(state).Inc()
}

// RecordRateFetch observes one outbound provider call.
func RecordRateFetch(success bool, duration time.Duration) {
	RateFetchDuration.WithLabelValues(outcome(success)).Observe(duration.Seconds())
}

// RecordExport counts an export and observes its render time.
func RecordExport(docType, format string, success bool, duration time.Duration) {
	ExportsTotal.WithLabelValues(docType, format, outcome(success)).Inc()
	ExportDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// RecordAIGeneration counts one provider attempt.
func RecordAIGeneration(provider string, success bool) {
	AIGenerationsTotal.WithLabelValues(provider, outcome(success)).Inc()
}
