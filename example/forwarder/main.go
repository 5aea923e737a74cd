// A TCP forwarder that announces the downstream peer to the upstream with a
// PROXY protocol header, the way a load balancer in front of an
// address-aware backend does.
package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kytta/sendproxy"
)

type forwarderConfig struct {
	Listen   string `toml:"listen"`
	Upstream string `toml:"upstream"`
	Metrics  string `toml:"metrics"`

	Version     int        `toml:"version"`
	Checksum    bool       `toml:"checksum"`
	PassAllTLVs bool       `toml:"pass_all_tlvs"`
	TLVs        []tlvEntry `toml:"tlv"`
}

type tlvEntry struct {
	Type  uint8  `toml:"type"`
	Value string `toml:"value"`
}

func main() {
	var configPath string
	pflag.StringVar(&configPath, "config", "forwarder.toml", "path of the TOML config file")
	pflag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	var cfg forwarderConfig
	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		log.Fatal("failed to load config", zap.String("path", configPath), zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	stats := sendproxy.NewStats(reg)
	if cfg.Metrics != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(cfg.Metrics, mux); err != nil {
				log.Error("metrics endpoint failed", zap.Error(err))
			}
		}()
	}

	proxyCfg := sendproxy.Config{
		Version:     sendproxy.Version(cfg.Version),
		PassAllTLVs: cfg.PassAllTLVs,
		Checksum:    cfg.Checksum,
	}
	for _, e := range cfg.TLVs {
		proxyCfg.TLVs = append(proxyCfg.TLVs, sendproxy.NewTLV(sendproxy.PP2Type(e.Type), []byte(e.Value)))
	}

	dialer := &sendproxy.DialerFactory{Dialer: net.Dialer{Timeout: time.Second * 5}}
	factory, err := sendproxy.NewFactory(dialer, proxyCfg, stats, log)
	if err != nil {
		log.Fatal("failed to build factory", zap.Error(err))
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		log.Fatal("failed to listen", zap.String("address", cfg.Listen), zap.Error(err))
	}
	log.Info("forwarding", zap.String("listen", cfg.Listen), zap.String("upstream", cfg.Upstream))

	host := &sendproxy.Host{Address: cfg.Upstream}
	for {
		down, err := ln.Accept()
		if err != nil {
			log.Error("accept failed", zap.Error(err))
			continue
		}
		go forward(log, factory, host, down)
	}
}

func forward(log *zap.Logger, factory *sendproxy.Factory, host *sendproxy.Host, down net.Conn) {
	defer down.Close()

	// announce the downstream peer and the address it connected to
	info := &sendproxy.ProxyInfo{
		SrcAddr: down.RemoteAddr(),
		DstAddr: down.LocalAddr(),
	}

	up, err := factory.NewConn(context.Background(), info, host)
	if err != nil {
		log.Error("failed to connect upstream", zap.String("upstream", host.Address), zap.Error(err))
		return
	}
	defer up.Close()

	pc := up.(*sendproxy.Conn)
	log.Info("connected upstream", zap.String("upstream", host.Address))
	log.Debug("generated header", pc.ZapFields()...)

	go func() {
		// downstream to upstream, half-close when the downstream is done
		if _, err := io.Copy(up, down); err != nil {
			log.Debug("downstream copy ended", zap.Error(err))
		}
		if err := pc.CloseWrite(); err != nil {
			log.Debug("upstream half-close failed", zap.Error(err))
		}
	}()

	if _, err := io.Copy(down, up); err != nil {
		log.Debug("upstream copy ended", zap.Error(err))
	}
}
