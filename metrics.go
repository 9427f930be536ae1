package authcore

import "github.com/MrEthical07/authcore/internal/metrics"

// MetricID identifies one engine counter or latency histogram.
type MetricID = metrics.MetricID

// MetricsSnapshot is a point-in-time copy of the engine's counters and
// latency histograms. Histogram slices have HistogramBuckets entries, bucket
// upper bounds 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, +Inf.
type MetricsSnapshot = metrics.Snapshot

// HistogramBuckets is the number of buckets in every latency histogram.
const HistogramBuckets = metrics.HistogramBuckets

const (
	MetricLoginSuccess         = metrics.LoginSuccess
	MetricLoginFailure         = metrics.LoginFailure
	MetricLoginRejectedLocked  = metrics.LoginRejectedLocked
	MetricAccountLocked        = metrics.AccountLocked
	MetricAccountUnlocked      = metrics.AccountUnlocked
	MetricAuthenticateSuccess  = metrics.AuthenticateSuccess
	MetricAuthenticateFailure  = metrics.AuthenticateFailure
	MetricRevokedTokenRejected = metrics.RevokedTokenRejected
	MetricRefreshSuccess       = metrics.RefreshSuccess
	MetricRefreshFailure       = metrics.RefreshFailure
	MetricRefreshRotated       = metrics.RefreshRotated
	MetricLogout               = metrics.Logout
	MetricTokenRevoked         = metrics.TokenRevoked
	MetricStoreUnavailable     = metrics.StoreUnavailable
	MetricRevocationsSwept     = metrics.RevocationsSwept

	// Latency histograms.
	MetricLoginLatency        = metrics.LoginLatency
	MetricAuthenticateLatency = metrics.AuthenticateLatency
	MetricRefreshLatency      = metrics.RefreshLatency
)
