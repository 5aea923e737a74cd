package sendproxy

import (
	"github.com/pkg/errors"
)

// TLVMetadataKey is the reserved metadata key under which an upstream host
// carries the TLV groups to stamp onto its connections.
const TLVMetadataKey = "sendproxy.tlvs"

var ErrMetadataNotTLVs = errors.New("host metadata entry does not hold TLV groups")

// Metadata is an opaque, typed per-host metadata set keyed by extension name.
// Values are placed by whoever configures the host and decoded by the
// extension that owns the key.
type Metadata map[string]any

// Host describes one upstream endpoint. Metadata may be nil.
type Host struct {
	Address  string
	Metadata Metadata
}

// LookupTLVs decode the TLV groups stored under key. The boolean reports
// whether the key was present at all, a present entry of the wrong type is an
// error, not a panic.
func (m Metadata) LookupTLVs(key string) (TLVs, bool, error) {
	raw, ok := m[key]
	if !ok {
		return nil, false, nil
	}

	switch v := raw.(type) {
	case TLVs:
		return v, true, nil
	case []TLV:
		return TLVs(v), true, nil
	default:
		return nil, true, errors.Wrapf(ErrMetadataNotTLVs, "unexpected type %T", raw)
	}
}
