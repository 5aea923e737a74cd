package main

import (
	"log"
	"net"
	"time"

	"github.com/kytta/sendproxy"
	"github.com/sirupsen/logrus"
)

func main() {
	conn, err := net.DialTimeout("tcp", "127.0.0.1:9090", time.Second*5)
	if err != nil {
		log.Println("err:", err)
		return
	}
	defer conn.Close()

	cfg := sendproxy.Config{
		Version:  sendproxy.Version2,
		TLVs:     sendproxy.TLVs{sendproxy.NewTLV(sendproxy.PP2_TYPE_AUTHORITY, []byte("example.com"))},
		Checksum: true,
	}
	info := &sendproxy.ProxyInfo{
		SrcAddr: &net.TCPAddr{
			IP:   net.IPv4(127, 0, 0, 1),
			Port: 12345,
		},
		DstAddr: &net.TCPAddr{
			IP:   net.IPv4(127, 0, 0, 1),
			Port: 56789,
		},
	}

	pc, err := sendproxy.NewConn(conn, cfg, sendproxy.WithProxyInfo(info))
	if err != nil {
		log.Println("err:", err)
		return
	}

	if _, err := pc.Write([]byte("ping")); err != nil {
		log.Println("write to connection fail:", err)
		return
	}
	logrus.WithFields(pc.LogrusFields()).Info("sent proxy protocol header")
}
