package main

import (
	"github.com/spf13/cobra"

	"github.com/ab2link/ab2link/internal/pccc"
	"github.com/ab2link/ab2link/internal/tui"
)

type inspectFlags struct {
	config string
}

func newInspectCmd() *cobra.Command {
	flags := &inspectFlags{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Run a Forward Open / PCCC echo / Forward Close sequence in a live dashboard",
		Long: `inspect drives the same sequence as "ab2ctl pccc --op echo", but renders
each step's progress (pending/running/done/error) in a small bubbletea
dashboard instead of printing line by line, useful for watching the
Forward Open retry ladder converge interactively.`,
		Example: `  ab2ctl inspect --config ab2ctl.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(flags)
		},
	}
	cmd.Flags().StringVar(&flags.config, "config", "ab2ctl.yaml", "Path to the ab2ctl config file")
	return cmd
}

func runInspect(flags *inspectFlags) error {
	cfg, err := loadConfigOrDefault(flags.config)
	if err != nil {
		return err
	}
	d, err := newDriver(cfg)
	if err != nil {
		return err
	}
	defer d.close()

	steps := []tui.Step{
		{Label: "Forward Open", Run: d.forwardOpen},
		{Label: "Execute PCCC (echo)", Run: func() error {
			_, err := d.executePCCC(pccc.EncodeRequest(pccc.EchoRequest(1, []byte{0xCA, 0xFE})))
			return err
		}},
		{Label: "Forward Close", Run: d.forwardClose},
	}
	return tui.Run(steps)
}
