package sendproxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stats holds the metrics shared by every connection built from one factory.
type Stats struct {
	// V2TLVsExceedMaxLength counts connections whose assembled TLV payload
	// exceeded the v2 length ceiling and was dropped from the header, once
	// per connection attempt.
	V2TLVsExceedMaxLength prometheus.Counter
}

// NewStats create the counters and register them with reg. A nil reg leaves
// the counters unregistered, which is what tests and embedders with their own
// registry plumbing want.
func NewStats(reg prometheus.Registerer) *Stats {
	return &Stats{
		V2TLVsExceedMaxLength: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "sendproxy_v2_tlvs_exceed_max_length_total",
			Help: "Connections whose PROXY protocol v2 TLV payload exceeded the maximum length and was omitted from the header.",
		}),
	}
}
