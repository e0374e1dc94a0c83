package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

func TestNewTransportKinds(t *testing.T) {
	tests := []struct {
		name    string
		desc    Descriptor
		wantErr bool
	}{
		{name: "Network", desc: Descriptor{Kind: KindNetwork, Address: "10.0.0.5:9100"}},
		{name: "Serial", desc: Descriptor{Kind: KindSerial, Address: "/dev/ttyUSB0", Baud: 19200}},
		{name: "USB", desc: Descriptor{Kind: KindUSB, Address: "/dev/usb/lp0"}},
		{name: "Spooler", desc: Descriptor{Kind: KindSpooler, Queue: "Deli_Scale_1"}},
		{name: "Network without address", desc: Descriptor{Kind: KindNetwork}, wantErr: true},
		{name: "Serial without port", desc: Descriptor{Kind: KindSerial}, wantErr: true},
		{name: "Spooler without queue", desc: Descriptor{Kind: KindSpooler}, wantErr: true},
		{name: "Unknown kind", desc: Descriptor{Kind: "bluetooth", Address: "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.desc)
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%+v) error = %v; wantErr %v", tt.desc, err, tt.wantErr)
			}
		})
	}
}

func TestNetworkSend(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	tr, err := New(Descriptor{Kind: KindNetwork, Address: ln.Addr().String()})
	if err != nil {
		t.Fatal(err)
	}

	conn, err := tr.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	payload := []byte("^XA^FDtest^FS^XZ")
	if err := conn.Send(context.Background(), payload); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case got := <-received:
		if string(got) != string(payload) {
			t.Errorf("printer received %q; want %q", got, payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
	}
}

func TestNetworkSendHonorsContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.Copy(io.Discard, conn) // hold the connection open
	}()

	tr, err := New(Descriptor{Kind: KindNetwork, Address: ln.Addr().String()})
	if err != nil {
		t.Fatal(err)
	}
	conn, err := tr.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := conn.Send(ctx, []byte("^XA^XZ")); err == nil {
		t.Error("Send with a cancelled context should fail")
	}
}

func TestNetworkOpenRefused(t *testing.T) {
	// Grab a free port, then close the listener so the dial is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	tr, err := New(Descriptor{Kind: KindNetwork, Address: addr})
	if err != nil {
		t.Fatal(err)
	}

	_, err = tr.Open(context.Background())
	if err == nil {
		t.Fatal("Open on closed port should fail")
	}

	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("Open error %v; want *transport.Error", err)
	}
	if !te.Retryable {
		t.Error("refused connection should be retryable")
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable should report true for a refused connection")
	}
}

func TestNetworkProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	tr, err := New(Descriptor{Kind: KindNetwork, Address: addr})
	if err != nil {
		t.Fatal(err)
	}
	if h := tr.Probe(context.Background()); h != HealthOnline {
		t.Errorf("Probe(listening) = %s; want %s", h, HealthOnline)
	}

	ln.Close()
	if h := tr.Probe(context.Background()); h != HealthOffline {
		t.Errorf("Probe(closed) = %s; want %s", h, HealthOffline)
	}
}

func TestUSBProbeMissingDevice(t *testing.T) {
	tr, err := New(Descriptor{Kind: KindUSB, Address: "/nonexistent/usb/lp9"})
	if err != nil {
		t.Fatal(err)
	}
	if h := tr.Probe(context.Background()); h != HealthOffline {
		t.Errorf("Probe(missing device) = %s; want %s", h, HealthOffline)
	}

	_, err = tr.Open(context.Background())
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("Open error %v; want *transport.Error", err)
	}
	if te.Retryable {
		t.Error("missing device should not be retryable")
	}
}

func TestDescriptorString(t *testing.T) {
	tests := []struct {
		desc Descriptor
		want string
	}{
		{Descriptor{Kind: KindNetwork, Address: "10.0.0.5:9100"}, "network://10.0.0.5:9100"},
		{Descriptor{Kind: KindSerial, Address: "COM3", Baud: 9600}, "serial://COM3@9600"},
		{Descriptor{Kind: KindSpooler, Queue: "Front_Desk"}, "spooler://Front_Desk"},
		{Descriptor{Kind: KindUSB, Address: "/dev/usb/lp0"}, "usb:///dev/usb/lp0"},
	}
	for _, tt := range tests {
		if got := tt.desc.String(); got != tt.want {
			t.Errorf("Descriptor.String() = %q; want %q", got, tt.want)
		}
	}
}
