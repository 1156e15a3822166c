package main

import (
	"fmt"

	"github.com/ab2link/ab2link/internal/ab2cip"
	"github.com/ab2link/ab2link/internal/ab2pccc"
	"github.com/ab2link/ab2link/internal/config"
	"github.com/ab2link/ab2link/internal/errors"
	"github.com/ab2link/ab2link/internal/layer"
	"github.com/ab2link/ab2link/internal/logging"
	"github.com/ab2link/ab2link/internal/simdevice"
)

// driver bundles the layer stack this command drives with the
// in-memory device it drives it against, and the logger every
// subcommand reports progress through.
type driver struct {
	cfg    config.Config
	log    *logging.Logger
	cip    *ab2cip.Layer
	pccc   *ab2pccc.Layer
	stack  *layer.Stack
	device *simdevice.Device
}

func newDriver(cfg config.Config) (*driver, error) {
	level, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	log, err := logging.NewLogger(level, cfg.Logging.LogFile)
	if err != nil {
		return nil, fmt.Errorf("ab2ctl: open logger: %w", err)
	}

	encodedPath, err := cfg.Connection.EncodedPath()
	if err != nil {
		log.Close()
		return nil, err
	}

	cip, err := ab2cip.New(ab2cip.Config{
		EncodedPath: encodedPath,
		CIPPayload:  cfg.Connection.CIPPayload,
		VendorID:    cfg.Connection.VendorID,
		SerialNum:   cfg.Connection.SerialNum,
		IsDHP:       cfg.Connection.IsDHP,
		DHPPort:     cfg.Connection.DHPPort,
		DHPDest:     cfg.Connection.DHPDest,
	}, nil)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("ab2ctl: construct CIP layer: %w", err)
	}

	pc := ab2pccc.New(ab2pccc.Config{
		VendorID:  cfg.Connection.VendorID,
		SerialNum: cfg.Connection.SerialNum,
	}, cip)

	d := &driver{
		cfg:    cfg,
		log:    log,
		cip:    cip,
		pccc:   pc,
		stack:  layer.NewStack(pc),
		device: &simdevice.Device{},
	}
	return d, nil
}

func (d *driver) close() {
	d.log.Close()
}

func parseLogLevel(s string) (logging.LogLevel, error) {
	switch s {
	case "", "info":
		return logging.LogLevelInfo, nil
	case "silent":
		return logging.LogLevelSilent, nil
	case "error":
		return logging.LogLevelError, nil
	case "verbose":
		return logging.LogLevelVerbose, nil
	case "debug":
		return logging.LogLevelDebug, nil
	default:
		return 0, fmt.Errorf("ab2ctl: unknown log level %q", s)
	}
}

// forwardOpen drives the CIP layer's Forward Open against d.device,
// redriving Connect whenever the CIP layer reports Retry, for up to
// cfg.Connection.RetryCeiling retries (RetryCeiling+1 attempts in all).
func (d *driver) forwardOpen() error {
	if r := d.stack.Initialize(); !r.Ok() {
		return fmt.Errorf("ab2ctl: initialize: %s", r.Error())
	}

	ceiling := d.cfg.Connection.RetryCeiling
	if ceiling <= 0 {
		ceiling = 3
	}

	for attempt := 0; attempt <= ceiling; attempt++ {
		f := layer.NewFrame(make([]byte, 512))
		f.End = 512
		if r := d.cip.Connect(f); !r.Ok() {
			return fmt.Errorf("ab2ctl: build forward open: %s", r.Error())
		}

		reply, err := d.device.Exchange(f.Buf[:f.End])
		if err != nil {
			return errors.WrapNetworkError(err, d.cfg.Target.Host, d.cfg.Target.Port)
		}

		rf := layer.NewFrame(reply)
		rf.End = len(reply)
		r := d.cip.ProcessResponse(rf)
		d.log.LogOperation("ForwardOpen", d.cfg.Target.Host, "0x54", r.Ok(), 0, r.Status, r.Err)
		switch {
		case r.Ok():
			return nil
		case r.Code == layer.Retry:
			continue
		default:
			return errors.WrapCIPError(fmt.Errorf("forward open rejected: %s", r.Error()), "ForwardOpen")
		}
	}
	return fmt.Errorf("ab2ctl: forward open did not converge within %d retries", ceiling)
}

// forwardClose tears the connection back down.
func (d *driver) forwardClose() error {
	f := layer.NewFrame(make([]byte, 512))
	f.End = 512
	if r := d.cip.Disconnect(f); !r.Ok() {
		return fmt.Errorf("ab2ctl: build forward close: %s", r.Error())
	}
	reply, err := d.device.Exchange(f.Buf[:f.End])
	if err != nil {
		return errors.WrapNetworkError(err, d.cfg.Target.Host, d.cfg.Target.Port)
	}
	rf := layer.NewFrame(reply)
	rf.End = len(reply)
	r := d.cip.ProcessResponse(rf)
	d.log.LogOperation("ForwardClose", d.cfg.Target.Host, "0x4E", r.Ok(), 0, r.Status, r.Err)
	if !r.Ok() {
		return errors.WrapCIPError(fmt.Errorf("forward close rejected: %s", r.Error()), "ForwardClose")
	}
	return nil
}

// executePCCC wraps req, exchanges it once the connection is already
// open, and returns the decoded PCCC response payload.
func (d *driver) executePCCC(req []byte) ([]byte, error) {
	pf, r := d.stack.PrepareFrame(512)
	if !r.Ok() {
		return nil, fmt.Errorf("ab2ctl: reserve pccc frame: %s", r.Error())
	}
	n, ok := pf.PutBytes(pf.Start, req)
	if !ok {
		return nil, fmt.Errorf("ab2ctl: pccc request of %d bytes does not fit", len(req))
	}
	pf.Start = n
	if r := d.stack.BuildFrame(pf); !r.Ok() {
		return nil, fmt.Errorf("ab2ctl: build pccc frame: %s", r.Error())
	}

	reply, err := d.device.Exchange(pf.Buf[:pf.End])
	if err != nil {
		return nil, errors.WrapNetworkError(err, d.cfg.Target.Host, d.cfg.Target.Port)
	}
	rf := layer.NewFrame(reply)
	rf.End = len(reply)
	res := d.stack.ProcessResponse(rf)
	d.log.LogOperation("ExecutePCCC", d.cfg.Target.Host, "0x4B", res.Ok(), 0, res.Status, res.Err)
	if !res.Ok() {
		return nil, errors.WrapCIPError(fmt.Errorf("pccc exchange rejected: %s", res.Error()), "ExecutePCCC")
	}
	return rf.Buf[rf.Start:rf.End], nil
}
