package datadog

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/baderkha/table-transfer/pkg/migrate/metrics"
)

func TestNewBackendRequiresAddr(t *testing.T) {
	if _, err := NewBackend(Config{}); err == nil {
		t.Fatal("expected an error without an addr")
	}
}

func TestTagsSorted(t *testing.T) {
	got := tags(metrics.Labels{"step": "load", "job": "orders"})
	if strings.Join(got, ",") != "job:orders,step:load" {
		t.Fatalf("tags = %v", got)
	}
	if tags(nil) != nil {
		t.Fatal("no labels should give no tags")
	}
}

func TestSendsToAgent(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("udp unavailable: %v", err)
	}
	defer conn.Close()

	b, err := NewBackend(Config{Addr: conn.LocalAddr().String(), Namespace: "transfer."})
	if err != nil {
		t.Fatal(err)
	}
	b.IncCounter(metrics.BatchesTotal, 3, metrics.Labels{"job": "orders"})
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1024)
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		t.Fatalf("nothing received: %v", err)
	}
	if got := string(buf[:n]); !strings.Contains(got, "transfer."+metrics.BatchesTotal+":3|c") || !strings.Contains(got, "job:orders") {
		t.Fatalf("unexpected packet %q", got)
	}
}
