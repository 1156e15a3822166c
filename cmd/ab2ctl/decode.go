package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ab2link/ab2link/internal/pccc"
)

type decodeFlags struct {
	kind string
	hex  string
}

func newDecodeCmd() *cobra.Command {
	flags := &decodeFlags{}
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a hex-encoded PCCC request/response and print its fields",
		Long: `decode parses a standalone PCCC message (the payload inside an
Execute PCCC request/reply, after the CIP service header) and prints
its command, status, and data fields. It does not drive a connection;
it is for decoding a frame captured elsewhere, e.g. with
"ab2ctl capture".`,
		Example: `  ab2ctl decode --kind request --hex "0F000100E0820000"
  ab2ctl decode --kind response --hex "0F00000100"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(flags)
		},
	}
	cmd.Flags().StringVar(&flags.kind, "kind", "request", "Message kind: request|response")
	cmd.Flags().StringVar(&flags.hex, "hex", "", "Hex-encoded PCCC message bytes (whitespace ignored)")
	return cmd
}

func runDecode(flags *decodeFlags) error {
	clean := strings.ReplaceAll(strings.TrimSpace(flags.hex), " ", "")
	if clean == "" {
		return fmt.Errorf("ab2ctl: --hex must not be empty")
	}
	data, err := hex.DecodeString(clean)
	if err != nil {
		return fmt.Errorf("ab2ctl: --hex %q is not valid hex: %w", flags.hex, err)
	}

	switch flags.kind {
	case "request":
		req, err := pccc.DecodeRequest(data)
		if err != nil {
			return fmt.Errorf("ab2ctl: decode request: %w", err)
		}
		fmt.Fprintf(os.Stdout, "command=%s (0x%02X) tns=0x%04X", req.Command, uint8(req.Command), req.TNS)
		if req.Command == pccc.CmdExtended {
			fmt.Fprintf(os.Stdout, " function=0x%02X", uint8(req.Function))
		}
		fmt.Fprintf(os.Stdout, " data=%X\n", req.Data)
	case "response":
		resp, err := pccc.DecodeResponse(data)
		if err != nil {
			return fmt.Errorf("ab2ctl: decode response: %w", err)
		}
		fmt.Fprintf(os.Stdout, "command=%s (0x%02X) tns=0x%04X status=0x%02X", resp.Command, uint8(resp.Command), resp.TNS, resp.Status)
		if resp.Status != 0 {
			fmt.Fprintf(os.Stdout, " ext_status=0x%02X", resp.ExtSTS)
		}
		fmt.Fprintf(os.Stdout, " data=%X\n", resp.Data)
	default:
		return fmt.Errorf("ab2ctl: unknown --kind %q (want request|response)", flags.kind)
	}
	return nil
}
