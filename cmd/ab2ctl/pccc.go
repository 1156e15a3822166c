package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ab2link/ab2link/internal/pccc"
)

type pcccFlags struct {
	config  string
	op      string
	address string
	value   string
	echo    string
}

func newPCCCCmd() *cobra.Command {
	flags := &pcccFlags{}
	cmd := &cobra.Command{
		Use:   "pccc",
		Short: "Open a connection and exchange one PCCC command",
		Long: `Negotiates a Forward Open, wraps a single PCCC request in an
Execute PCCC frame, exchanges it, and prints the decoded reply.

--op selects the PCCC command:
  echo  - Echo request; --echo supplies the payload as a hex string
  read  - Typed Read; --address is a data-table address (e.g. N7:0)
  write - Typed Write; --address and --value (hex bytes)`,
		Example: `  ab2ctl pccc --op echo --echo DEADBEEF
  ab2ctl pccc --op read --address N7:0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPCCC(flags)
		},
	}
	cmd.Flags().StringVar(&flags.config, "config", "ab2ctl.yaml", "Path to the ab2ctl config file")
	cmd.Flags().StringVar(&flags.op, "op", "echo", "PCCC operation: echo|read|write")
	cmd.Flags().StringVar(&flags.address, "address", "", "Data-table address for read/write (e.g. N7:0)")
	cmd.Flags().StringVar(&flags.value, "value", "", "Hex-encoded data to write")
	cmd.Flags().StringVar(&flags.echo, "echo", "00", "Hex-encoded payload for --op echo")
	return cmd
}

func runPCCC(flags *pcccFlags) error {
	cfg, err := loadConfigOrDefault(flags.config)
	if err != nil {
		return err
	}

	d, err := newDriver(cfg)
	if err != nil {
		return err
	}
	defer d.close()

	if err := d.forwardOpen(); err != nil {
		return err
	}

	req, err := buildPCCCRequest(flags)
	if err != nil {
		return err
	}

	reply, err := d.executePCCC(pccc.EncodeRequest(req))
	if err != nil {
		return err
	}

	resp, err := pccc.DecodeResponse(reply)
	if err != nil {
		return fmt.Errorf("ab2ctl: decode pccc reply: %w", err)
	}
	fmt.Fprintf(os.Stdout, "PCCC reply: command=%s status=0x%02X data=%X\n", resp.Command, resp.Status, resp.Data)

	if err := d.forwardClose(); err != nil {
		return err
	}
	return nil
}

func buildPCCCRequest(flags *pcccFlags) (pccc.Request, error) {
	switch flags.op {
	case "echo":
		payload, err := hex.DecodeString(flags.echo)
		if err != nil {
			return pccc.Request{}, fmt.Errorf("ab2ctl: --echo %q is not valid hex: %w", flags.echo, err)
		}
		return pccc.EchoRequest(1, payload), nil
	case "read":
		addr, err := pccc.ParseAddress(flags.address)
		if err != nil {
			return pccc.Request{}, fmt.Errorf("ab2ctl: --address %q: %w", flags.address, err)
		}
		return pccc.TypedReadRequest(1, addr, uint8(addr.FileType.ByteSize())), nil
	case "write":
		addr, err := pccc.ParseAddress(flags.address)
		if err != nil {
			return pccc.Request{}, fmt.Errorf("ab2ctl: --address %q: %w", flags.address, err)
		}
		data, err := hex.DecodeString(flags.value)
		if err != nil {
			return pccc.Request{}, fmt.Errorf("ab2ctl: --value %q is not valid hex: %w", flags.value, err)
		}
		return pccc.TypedWriteRequest(1, addr, data), nil
	default:
		return pccc.Request{}, fmt.Errorf("ab2ctl: unknown --op %q (want echo|read|write)", flags.op)
	}
}
