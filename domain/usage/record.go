package usage

import "time"

// EndpointUsage accumulates per-endpoint metrics within one day.
type EndpointUsage struct {
	Calls        int64   `json:"calls"`
	Tokens       int64   `json:"tokens,omitempty"`
	Characters   int64   `json:"characters,omitempty"`
	AudioSeconds float64 `json:"audioSeconds,omitempty"`
	CallSeconds  float64 `json:"callSeconds,omitempty"`
	SMSCount     int64   `json:"smsCount,omitempty"`
}

// DayRecord is the per (user, date) usage document. TotalCostUSD is
// additive: every tracked call contributes its own delta, it is never
// recomputed from scratch, so it is monotonically non-decreasing
// within a day.
type DayRecord struct {
	Date          string                   `json:"date"`
	Endpoints     map[string]EndpointUsage `json:"endpoints"`
	TotalCostUSD  float64                  `json:"totalEstimatedCostUsd"`
	LastUpdatedAt time.Time                `json:"lastUpdatedAt"`
}

// Delta is the contribution of one tracked call.
type Delta struct {
	Endpoint string
	Metrics  Metrics
	CostUSD  float64
}

// Apply merges one call's delta into a day record: endpoint calls +1,
// supplied accumulators by their value, total cost by the delta.
// This is a PURE function; stores use it inside their own atomic
// update primitive.
func Apply(rec DayRecord, d Delta, now time.Time) DayRecord {
	if rec.Endpoints == nil {
		rec.Endpoints = make(map[string]EndpointUsage)
	} else {
		// Copy so callers holding the input record are not aliased.
		eps := make(map[string]EndpointUsage, len(rec.Endpoints))
		for k, v := range rec.Endpoints {
			eps[k] = v
		}
		rec.Endpoints = eps
	}

	ep := rec.Endpoints[d.Endpoint]
	ep.Calls++
	ep.Tokens += d.Metrics.Tokens
	ep.Characters += d.Metrics.Characters
	ep.AudioSeconds += d.Metrics.AudioSeconds
	ep.CallSeconds += d.Metrics.CallSeconds
	ep.SMSCount += d.Metrics.SMSCount
	rec.Endpoints[d.Endpoint] = ep

	rec.TotalCostUSD += d.CostUSD
	rec.LastUpdatedAt = now
	return rec
}

// TotalCalls sums call counts across all endpoints of a day.
// This is a PURE function.
func TotalCalls(rec DayRecord) int64 {
	var n int64
	for _, ep := range rec.Endpoints {
		n += ep.Calls
	}
	return n
}
