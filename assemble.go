package sendproxy

import (
	"go.uber.org/zap"
)

// hostMetadataTLVs extract the TLV groups the upstream host carries under
// TLVMetadataKey. Hosts are picked per connection attempt, so this runs on
// every header generation rather than once per configuration. Undecodable
// metadata means no host groups, it never fails the connection.
func hostMetadataTLVs(host *Host, log *zap.Logger) TLVs {
	if host == nil {
		return nil
	}

	tlvs, present, err := host.Metadata.LookupTLVs(TLVMetadataKey)
	if err != nil {
		log.Warn("failed to decode TLVs from host metadata",
			zap.String("host", host.Address), zap.Error(err))
		return nil
	}
	if !present {
		return nil
	}

	out := make(TLVs, 0, len(tlvs))
	seen := make(map[PP2Type]struct{}, len(tlvs))
	for _, tlv := range tlvs {
		if len(tlv.Value) == 0 {
			log.Warn("skipping host metadata TLV with empty value",
				zap.String("host", host.Address), zap.Uint8("type", uint8(tlv.Type)))
			continue
		}
		if _, dup := seen[tlv.Type]; dup {
			log.Warn("skipping host metadata TLV with duplicate type",
				zap.String("host", host.Address), zap.Uint8("type", uint8(tlv.Type)))
			continue
		}
		seen[tlv.Type] = struct{}{}
		out = append(out, tlv)
	}
	return out
}

// mergeTLVs combine the host metadata groups with the configured ones. The
// host metadata value wins when both carry the same type, configured groups
// backfill the rest. Order is stable: host groups first in metadata order,
// then configured groups in configuration order.
func mergeTLVs(hostTLVs, configTLVs TLVs) TLVs {
	if len(hostTLVs) == 0 {
		return configTLVs
	}

	merged := make(TLVs, 0, len(hostTLVs)+len(configTLVs))
	merged = append(merged, hostTLVs...)

	owned := hostTLVs.typeSet()
	for _, tlv := range configTLVs {
		if _, ok := owned[tlv.Type]; ok {
			continue
		}
		merged = append(merged, tlv)
	}
	return merged
}
