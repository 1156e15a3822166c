package main

import (
	"testing"

	"github.com/ab2link/ab2link/internal/config"
	"github.com/ab2link/ab2link/internal/pccc"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Logging.Level = "silent"
	return cfg
}

func TestDriverForwardOpenAndClose(t *testing.T) {
	d, err := newDriver(testConfig())
	if err != nil {
		t.Fatalf("newDriver: %v", err)
	}
	defer d.close()

	if err := d.forwardOpen(); err != nil {
		t.Fatalf("forwardOpen: %v", err)
	}
	if d.cip.PLCConnectionID() == 0 {
		t.Fatalf("expected a non-zero PLC connection id after Forward Open")
	}
	if err := d.forwardClose(); err != nil {
		t.Fatalf("forwardClose: %v", err)
	}
}

func TestDriverExecutePCCCEcho(t *testing.T) {
	d, err := newDriver(testConfig())
	if err != nil {
		t.Fatalf("newDriver: %v", err)
	}
	defer d.close()

	if err := d.forwardOpen(); err != nil {
		t.Fatalf("forwardOpen: %v", err)
	}

	req := pccc.EncodeRequest(pccc.EchoRequest(1, []byte{0xCA, 0xFE}))
	reply, err := d.executePCCC(req)
	if err != nil {
		t.Fatalf("executePCCC: %v", err)
	}
	resp, err := pccc.DecodeResponse(reply)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if resp.Status != 0 {
		t.Fatalf("expected status 0, got 0x%02X", resp.Status)
	}

	if err := d.forwardClose(); err != nil {
		t.Fatalf("forwardClose: %v", err)
	}
}

func TestDriverForwardOpenRetriesOnRejectedSize(t *testing.T) {
	cfg := testConfig()
	cfg.Connection.CIPPayload = 4002
	cfg.Connection.RetryCeiling = 2

	d, err := newDriver(cfg)
	if err != nil {
		t.Fatalf("newDriver: %v", err)
	}
	defer d.close()
	d.device.RejectSizesAbove = 2000

	if err := d.forwardOpen(); err != nil {
		t.Fatalf("forwardOpen: %v", err)
	}
}
