package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/voxbridge/voxbridge/domain/ratelimit"
	"github.com/voxbridge/voxbridge/domain/usage"
)

// maxBodyBytes caps inbound request bodies. Audio uploads for
// transcription are the largest legitimate payloads.
const maxBodyBytes = 10 << 20 // 10MB

// version is set at build time via -ldflags.
var version = "dev"

// Version reports the build version.
func Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "voxbridge",
		"version": version,
	})
}

// Invoke forwards one metered request to its provider. The quota check
// happens before the provider call; usage recording happens after it,
// in the background, so provider latency is the only latency the
// speaker sees.
func (h *Handler) Invoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := IdentityFrom(ctx)
	endpoint := chi.URLParam(r, "endpoint")

	res := h.limiter.Check(ctx, id.UserID, endpoint)
	if !res.Allowed {
		retry := ratelimit.RetryAfter(res, h.clock.Now())
		w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
		setRateLimitHeaders(w, res)
		writeError(w, http.StatusTooManyRequests, res.Reason, denialMessage(res.Reason))
		return
	}
	setRateLimitHeaders(w, res)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Failed to read request body")
		return
	}

	resp, err := h.upstream.Invoke(ctx, endpoint, body)
	if err != nil {
		h.logger.Error().Err(err).
			Str("endpoint", endpoint).
			Str("user_id", id.UserID).
			Msg("provider call failed")
		writeError(w, http.StatusBadGateway, "provider_error", "Provider request failed")
		return
	}

	// Fire and forget: usage recording must not delay the response.
	// A fresh context detaches it from the request's cancellation.
	m := meterFromExchange(endpoint, body, resp.Body)
	go func() {
		trackCtx, cancel := contextWithTrackTimeout()
		defer cancel()
		h.meter.Track(trackCtx, id.UserID, endpoint, m)
	}()

	for k, v := range resp.Header {
		w.Header().Set(k, v)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.Status)
	w.Write(resp.Body)
}

// Quota reports the caller's current standing on one endpoint without
// consuming a request.
func (h *Handler) Quota(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := IdentityFrom(ctx)
	endpoint := chi.URLParam(r, "endpoint")

	res := h.limiter.Status(ctx, id.UserID, endpoint)
	pol, metered := h.limiter.Policy(endpoint)

	out := quotaResponse{
		Endpoint:  endpoint,
		Metered:   metered,
		Allowed:   res.Allowed,
		Remaining: res.Remaining,
	}
	if metered {
		out.Limits = &pol
		out.ResetAt = &res.ResetAt
	}
	writeJSON(w, http.StatusOK, out)
}

type quotaResponse struct {
	Endpoint  string                `json:"endpoint"`
	Metered   bool                  `json:"metered"`
	Allowed   bool                  `json:"allowed"`
	Remaining ratelimit.Remaining   `json:"remaining"`
	Limits    *ratelimit.Policy     `json:"limits,omitempty"`
	ResetAt   *ratelimit.ResetTimes `json:"resetAt,omitempty"`
}

// MyUsage returns the caller's usage over a trailing window of days
// (query parameter "days", default 7, max 90).
func (h *Handler) MyUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := IdentityFrom(ctx)
	days := parseDays(r, 7)

	now := h.clock.Now().UTC()
	from := usage.DayKey(now.AddDate(0, 0, -(days - 1)))
	to := usage.DayKey(now)

	recs, err := h.meter.Range(ctx, id.UserID, from, to)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", id.UserID).Msg("usage range read failed")
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "Usage data is temporarily unavailable")
		return
	}

	writeJSON(w, http.StatusOK, usageRangeResponse{
		From: from,
		To:   to,
		Days: recs,
	})
}

type usageRangeResponse struct {
	From string            `json:"from"`
	To   string            `json:"to"`
	Days []usage.DayRecord `json:"days"`
}

// MyUsageDay returns the caller's usage for one calendar day.
func (h *Handler) MyUsageDay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := IdentityFrom(ctx)
	date := chi.URLParam(r, "date")

	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "Date must be YYYY-MM-DD")
		return
	}

	rec, err := h.meter.Day(ctx, id.UserID, date)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", id.UserID).Msg("usage day read failed")
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "Usage data is temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// AdminStats returns the aggregated dashboard view (query parameter
// "days", default 30, max 90).
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	days := parseDays(r, 30)

	ov, err := h.stats.Overview(r.Context(), days)
	if err != nil {
		h.logger.Error().Err(err).Msg("stats overview failed")
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "Stats are temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// AdminUserUsage returns one user's usage history for the admin view.
func (h *Handler) AdminUserUsage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	days := parseDays(r, 30)

	user, recs, err := h.stats.UserUsage(r.Context(), userID, days)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "user_not_found", "No such user")
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("user usage read failed")
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "Usage data is temporarily unavailable")
		return
	}

	writeJSON(w, http.StatusOK, adminUserUsageResponse{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Status:      user.Status,
		Days:        recs,
	})
}

type adminUserUsageResponse struct {
	UserID      string            `json:"userId"`
	DisplayName string            `json:"displayName"`
	Status      string            `json:"status"`
	Days        []usage.DayRecord `json:"days"`
}

// meterFromExchange derives consumption metrics from the request and
// response bodies of one provider call. Fields the payload does not
// carry stay zero and contribute nothing to cost.
func meterFromExchange(endpoint string, reqBody, respBody []byte) usage.Metrics {
	switch endpoint {
	case "speak":
		// Synthesis is billed per character of the spoken text.
		return usage.Metrics{Characters: int64(len(textField(reqBody)))}
	case "transcribe":
		var out struct {
			DurationSeconds float64 `json:"durationSeconds"`
			Text            string  `json:"text"`
		}
		_ = json.Unmarshal(respBody, &out)
		return usage.Metrics{
			AudioSeconds: out.DurationSeconds,
			Tokens:       usage.EstimateTokens(out.Text),
		}
	default:
		// LLM-backed endpoints: estimate from both directions.
		return usage.Metrics{
			Tokens: usage.EstimateTokens(textField(reqBody)) + usage.EstimateTokens(string(respBody)),
		}
	}
}

// textField pulls the "text" field out of a JSON payload, falling back
// to the raw payload for non-JSON bodies.
func textField(body []byte) string {
	var in struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &in); err == nil && in.Text != "" {
		return in.Text
	}
	return string(body)
}

func setRateLimitHeaders(w http.ResponseWriter, res ratelimit.Result) {
	if res.Remaining.Minute == ratelimit.Unlimited {
		return
	}
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining.Minute))
	if !res.ResetAt.Minute.IsZero() {
		w.Header().Set("X-RateLimit-Reset", res.ResetAt.Minute.UTC().Format(time.RFC3339))
	}
}

func denialMessage(reason string) string {
	switch reason {
	case ratelimit.ReasonMinuteExceeded:
		return "Per-minute limit reached, slow down a little"
	case ratelimit.ReasonHourExceeded:
		return "Hourly limit reached"
	case ratelimit.ReasonDayExceeded:
		return "Daily limit reached"
	default:
		return "Rate limit exceeded"
	}
}

func parseDays(r *http.Request, def int) int {
	v := r.URL.Query().Get("days")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	if n > 90 {
		return 90
	}
	return n
}
