package rpcpool

import (
	"reflect"
	"testing"
)

func TestExpandEndpoints_NoRange(t *testing.T) {
	got, err := ExpandEndpoints([]string{"tcp:host=localhost:port=8789"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"tcp:host=localhost:port=8789"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExpandEndpoints_HostRangeZeroPadded(t *testing.T) {
	got, err := ExpandEndpoints([]string{"tcp:host=h[01-10]:port=6817"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 expanded endpoints, got %d", len(got))
	}
	if got[0] != "tcp:host=h01:port=6817" {
		t.Fatalf("expected first endpoint h01, got %q", got[0])
	}
	if got[9] != "tcp:host=h10:port=6817" {
		t.Fatalf("expected last endpoint h10, got %q", got[9])
	}
}

func TestExpandEndpoints_MultipleDescriptors(t *testing.T) {
	got, err := ExpandEndpoints([]string{
		"tcp:host=a:port=1",
		"tcp:host=b[1-3]:port=2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"tcp:host=a:port=1",
		"tcp:host=b1:port=2",
		"tcp:host=b2:port=2",
		"tcp:host=b3:port=2",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDialAddr(t *testing.T) {
	addr, err := DialAddr("tcp:host=192.168.1.5:port=6817")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != "192.168.1.5:6817" {
		t.Fatalf("got %q, want 192.168.1.5:6817", addr)
	}
}

func TestDialAddr_Malformed(t *testing.T) {
	if _, err := DialAddr("not-a-descriptor"); err == nil {
		t.Fatal("expected error for malformed descriptor")
	}
}
