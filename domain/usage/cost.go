// Package usage provides pure functions for usage metering: cost
// estimation, per-day record merging, and admin aggregation.
// All functions are deterministic with no side effects.
package usage

import "time"

// Metrics holds the realized consumption of a single provider call.
// Zero-valued fields contribute nothing to cost or accumulators.
type Metrics struct {
	Tokens       int64   // LLM calls (predict, categorize, transcribe)
	Characters   int64   // Speech synthesis (speak)
	AudioSeconds float64 // Transcription input length
	CallSeconds  float64 // Telephony call duration (emergency)
	SMSCount     int64   // Telephony messages (emergency)
}

// Rates holds the per-unit USD rates used for cost estimation.
type Rates struct {
	InputToken  float64 `yaml:"input_token"`
	OutputToken float64 `yaml:"output_token"`
	Character   float64 `yaml:"character"`
	CallMinute  float64 `yaml:"call_minute"`
	SMS         float64 `yaml:"sms"`
}

// DefaultRates are the provider list prices the estimates are based on.
func DefaultRates() Rates {
	return Rates{
		InputToken:  0.000001, // $1 per 1M input tokens
		OutputToken: 0.000004, // $4 per 1M output tokens
		Character:   0.00003,  // $30 per 1M characters
		CallMinute:  0.014,
		SMS:         0.0075,
	}
}

// Token accounting assumes this share of a call's tokens were input.
const inputTokenShare = 0.8

// Cost computes the estimated USD cost of one call from its metrics.
// This is a PURE function. Only supplied metrics contribute; the
// estimate is heuristic, not exact accounting.
func Cost(m Metrics, r Rates) float64 {
	var cost float64
	if m.Tokens > 0 {
		input := float64(m.Tokens) * inputTokenShare
		output := float64(m.Tokens) * (1 - inputTokenShare)
		cost += input*r.InputToken + output*r.OutputToken
	}
	if m.Characters > 0 {
		cost += float64(m.Characters) * r.Character
	}
	if m.CallSeconds > 0 {
		cost += m.CallSeconds / 60 * r.CallMinute
	}
	if m.SMSCount > 0 {
		cost += float64(m.SMSCount) * r.SMS
	}
	return cost
}

// EstimateTokens gives a rough token count for a text, at about four
// characters per token for English. This is a PURE function.
func EstimateTokens(text string) int64 {
	if text == "" {
		return 0
	}
	return int64((len(text) + 3) / 4)
}

// DayKey returns the calendar-day bucket for a timestamp. Day
// bucketing is always UTC so billing days do not shift with server
// timezone.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
