package internaldefs

import (
	"strconv"
	"strings"

	"github.com/MrEthical07/jwtsession"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   jwtsession.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   jwtsession.MetricID
	Name string
	Help string
}

const namespace = "jwtsession_"

var CounterDefs = []CounterDef{
	{ID: jwtsession.MetricAuthSuccess, Help: "Successful token authentications."},
	{ID: jwtsession.MetricAuthFailure, Help: "Authentication failures returned as unauthorized."},
	{ID: jwtsession.MetricTokenInvalid, Help: "Tokens rejected by verification."},
	{ID: jwtsession.MetricIdentityAttributeInvalid, Help: "Verified tokens without a usable email claim."},
	{ID: jwtsession.MetricIdentityCreated, Help: "Identities created on first authentication."},
	{ID: jwtsession.MetricIdentityCreateConflict, Help: "Identity creates that lost a uniqueness race and re-read."},
	{ID: jwtsession.MetricIdentityCreateConflictExhausted, Help: "Identity resolutions that gave up after the retry cap."},
	{ID: jwtsession.MetricSessionCreated, Help: "Sessions created."},
	{ID: jwtsession.MetricSessionReplaced, Help: "Live sessions removed by a newer session of the same identity."},
	{ID: jwtsession.MetricSessionDestroyed, Help: "Sessions removed by explicit destroy."},
	{ID: jwtsession.MetricSessionInvalidTTL, Help: "Session creates refused because the token had no lifetime left."},
	{ID: jwtsession.MetricSessionBackendError, Help: "Session store failures."},
	{ID: jwtsession.MetricThrottled, Help: "Requests refused because the client exceeded its failure budget."},
}

var HistogramDefs = []HistogramDef{
	{ID: jwtsession.MetricVerifyLatency, Help: "Token verification latency."},
}

func init() {
	for i := range CounterDefs {
		CounterDefs[i].Name = namespace + CounterDefs[i].ID.String()
	}
	for i := range HistogramDefs {
		HistogramDefs[i].Name = namespace + HistogramDefs[i].ID.String() + "_seconds"
	}
}

// ReportDroppedName is the counter for failure reports lost to backpressure.
const ReportDroppedName = namespace + "report_dropped_total"

// BucketCount is the number of histogram buckets including +Inf.
const BucketCount = len(jwtsession.HistogramBounds) + 1

// UpperBounds returns the finite bucket bounds in seconds.
func UpperBounds() []float64 {
	out := make([]float64, len(jwtsession.HistogramBounds))
	for i, d := range jwtsession.HistogramBounds {
		out[i] = d.Seconds()
	}
	return out
}

// BoundSuffix returns instrument-safe names for every bucket, "inf" last.
func BoundSuffix() []string {
	out := make([]string, 0, BucketCount)
	for _, b := range UpperBounds() {
		s := strconv.FormatFloat(b, 'f', -1, 64)
		out = append(out, strings.ReplaceAll(s, ".", "_"))
	}
	return append(out, "inf")
}

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
