package sendproxy

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Config holds the header-shaping settings shared by every connection built
// from it. A Config is consumed by value and never mutated after that.
type Config struct {
	// Version selects the text (1) or binary (2) header format.
	Version Version

	// PassAllTLVs forwards every TLV group observed on the downstream
	// connection. When false, only the types listed in PassTLVTypes are
	// forwarded, none by default.
	PassAllTLVs  bool
	PassTLVTypes []PP2Type

	// TLVs are stamped onto every v2 header, unless the upstream host's
	// metadata carries a group of the same type.
	TLVs TLVs

	// Checksum appends a PP2_TYPE_CRC32C group to v2 headers.
	Checksum bool
}

func (cfg Config) validate() error {
	if cfg.Version != Version1 && cfg.Version != Version2 {
		return errors.Wrapf(ErrUnknownVersion, "version 0x%x", byte(cfg.Version))
	}
	return nil
}

// staticTLVs normalize the configured TLV groups: groups with empty values
// are never materialized, and the first group wins when a type repeats.
func (cfg Config) staticTLVs(log *zap.Logger) TLVs {
	if len(cfg.TLVs) == 0 {
		return nil
	}

	out := make(TLVs, 0, len(cfg.TLVs))
	seen := make(map[PP2Type]struct{}, len(cfg.TLVs))
	for _, tlv := range cfg.TLVs {
		if len(tlv.Value) == 0 {
			log.Warn("skipping configured TLV with empty value", zap.Uint8("type", uint8(tlv.Type)))
			continue
		}
		if _, dup := seen[tlv.Type]; dup {
			log.Warn("skipping configured TLV with duplicate type", zap.Uint8("type", uint8(tlv.Type)))
			continue
		}
		seen[tlv.Type] = struct{}{}
		out = append(out, tlv)
	}
	return out
}

func (cfg Config) passTypeSet() map[PP2Type]struct{} {
	if len(cfg.PassTLVTypes) == 0 {
		return nil
	}

	set := make(map[PP2Type]struct{}, len(cfg.PassTLVTypes))
	for _, t := range cfg.PassTLVTypes {
		set[t] = struct{}{}
	}
	return set
}
