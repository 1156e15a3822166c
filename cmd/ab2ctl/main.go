package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ab2ctl",
		Short: "Layer-stack driver for Allen-Bradley CIP/PCCC targets",
		Long: `ab2ctl drives the Connection Manager and PCCC encapsulation layers
against a configured target: it negotiates a Forward Open, wraps PCCC
commands in Execute PCCC requests, and tears the connection back down.

By default it runs against an in-memory simulated PLC (internal/simdevice)
so the full negotiation and retry ladder can be exercised without a live
EtherNet/IP adapter.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newOpenCmd())
	rootCmd.AddCommand(newPCCCCmd())
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newDecodeCmd())
	rootCmd.AddCommand(newCaptureCmd())
	rootCmd.AddCommand(newValidateConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
