package agent

import (
	"strings"
	"testing"
)

const testDomainXML = `<domain type='kvm'>
  <name>nd-abc1234-0</name>
  <devices>
    <disk type='file' device='disk'>
      <source file='/images/base.qcow2'/>
    </disk>
  </devices>
</domain>`

func TestParseDomainDescription_Name(t *testing.T) {
	d, err := parseDomainDescription(testDomainXML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	name, err := d.Name()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "nd-abc1234-0" {
		t.Fatalf("expected nd-abc1234-0, got %q", name)
	}
}

func TestParseDomainDescription_RootImagePath(t *testing.T) {
	d, err := parseDomainDescription(testDomainXML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path, err := d.RootImagePath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/images/base.qcow2" {
		t.Fatalf("expected /images/base.qcow2, got %q", path)
	}
}

func TestDomainDescription_SetRootImagePath(t *testing.T) {
	d, err := parseDomainDescription(testDomainXML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.SetRootImagePath("/clones/nd-abc1234-0.qcow2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path, err := d.RootImagePath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/clones/nd-abc1234-0.qcow2" {
		t.Fatalf("expected updated path, got %q", path)
	}
}

func TestDomainDescription_AddSerialToTCPDevice(t *testing.T) {
	d, err := parseDomainDescription(testDomainXML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.AddSerialToTCPDevice("127.0.0.1", 5555, "connect"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := d.String()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{`type="tcp"`, `mode="connect"`, `host="127.0.0.1"`, `service="5555"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected rendered xml to contain %q, got:\n%s", want, out)
		}
	}
}

func TestParseDomainDescription_MissingName(t *testing.T) {
	d, err := parseDomainDescription(`<domain><devices/></domain>`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if _, err := d.Name(); err == nil {
		t.Fatal("expected error for missing <name>")
	}
}

func TestParseDomainDescription_Malformed(t *testing.T) {
	if _, err := parseDomainDescription("<domain>"); err == nil {
		t.Fatal("expected error for malformed xml")
	}
}
