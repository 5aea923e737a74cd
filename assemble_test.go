package sendproxy

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func Test_hostMetadataTLVs(t *testing.T) {
	log := zap.NewNop()

	tests := []struct {
		name string
		host *Host
		want TLVs
	}{
		{
			name: "no-host",
			host: nil,
			want: nil,
		}, {
			name: "no-metadata",
			host: &Host{Address: "10.0.0.2:443"},
			want: nil,
		}, {
			name: "key-absent",
			host: &Host{Address: "10.0.0.2:443", Metadata: Metadata{"other.extension": "value"}},
			want: nil,
		}, {
			name: "undecodable",
			host: &Host{Address: "10.0.0.2:443", Metadata: Metadata{TLVMetadataKey: 42}},
			want: nil,
		}, {
			name: "filters-empty-and-duplicate",
			host: &Host{
				Address: "10.0.0.2:443",
				Metadata: Metadata{TLVMetadataKey: TLVs{
					NewTLV(PP2Type(0xEA), []byte("first")),
					NewTLV(PP2Type(0xEB), nil),
					NewTLV(PP2Type(0xEA), []byte("second")),
				}},
			},
			want: TLVs{NewTLV(PP2Type(0xEA), []byte("first"))},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, hostMetadataTLVs(tt.host, log))
		})
	}
}

func Test_mergeTLVs(t *testing.T) {
	hostTLVs := TLVs{
		NewTLV(PP2Type(0xEA), []byte("host")),
		NewTLV(PP2Type(0xEB), []byte("host-only")),
	}
	configTLVs := TLVs{
		NewTLV(PP2Type(0xEA), []byte("config")),
		NewTLV(PP2Type(0xEC), []byte("config-only")),
	}

	tests := []struct {
		name     string
		hostTLVs TLVs
		cfgTLVs  TLVs
		want     TLVs
	}{
		{
			name:    "no-host-groups",
			cfgTLVs: configTLVs,
			want:    configTLVs,
		}, {
			name:     "no-config-groups",
			hostTLVs: hostTLVs,
			want:     hostTLVs,
		}, {
			name:     "host-wins-config-backfills",
			hostTLVs: hostTLVs,
			cfgTLVs:  configTLVs,
			want: TLVs{
				NewTLV(PP2Type(0xEA), []byte("host")),
				NewTLV(PP2Type(0xEB), []byte("host-only")),
				NewTLV(PP2Type(0xEC), []byte("config-only")),
			},
		}, {
			name: "nothing",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, mergeTLVs(tt.hostTLVs, tt.cfgTLVs))
		})
	}
}
