package main

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/ab2link/ab2link/internal/capture"
	"github.com/ab2link/ab2link/internal/pccc"
	"github.com/ab2link/ab2link/internal/transport"
)

type captureFlags struct {
	config     string
	output     string
	clientIP   string
	copy       bool
	pullHost   string
	pullRemote string
	pullUser   string
	pullKey    string
	pullLocal  string
	insecure   bool
}

func newCaptureCmd() *cobra.Command {
	flags := &captureFlags{}
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Run a Forward Open + PCCC exchange and record it to a pcap file",
		Long: `Drives the same Forward Open / Execute PCCC / Forward Close sequence
as "ab2ctl open" and "ab2ctl pccc", but in addition synthesizes an
Ethernet/IPv4/TCP frame around every request and reply and appends it
to --output, so the conversation can be opened in Wireshark with the
CIP dissector attached.

--pull-host fetches a previously captured pcap from a remote
diagnostic host over SFTP instead of capturing locally.`,
		Example: `  ab2ctl capture --config ab2ctl.yaml --output session.pcap
  ab2ctl capture --pull-host 10.0.0.5 --pull-remote /var/log/ab2/last.pcap --pull-user svc --pull-key ~/.ssh/id_ed25519`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(flags)
		},
	}
	cmd.Flags().StringVar(&flags.config, "config", "ab2ctl.yaml", "Path to the ab2ctl config file")
	cmd.Flags().StringVar(&flags.output, "output", "ab2ctl.pcap", "Path to write the pcap file")
	cmd.Flags().StringVar(&flags.clientIP, "client-ip", "127.0.0.1", "Source IP to synthesize for our own frames")
	cmd.Flags().BoolVar(&flags.copy, "copy", false, "Copy the final PCCC reply's hex dump to the clipboard")
	cmd.Flags().StringVar(&flags.pullHost, "pull-host", "", "Remote host to pull a recorded pcap from instead of capturing locally")
	cmd.Flags().StringVar(&flags.pullRemote, "pull-remote", "", "Remote pcap path (used with --pull-host)")
	cmd.Flags().StringVar(&flags.pullUser, "pull-user", "", "SSH user for --pull-host")
	cmd.Flags().StringVar(&flags.pullKey, "pull-key", "", "SSH private key file for --pull-host")
	cmd.Flags().BoolVar(&flags.insecure, "pull-insecure", false, "Skip host key verification for --pull-host")
	return cmd
}

func runCapture(flags *captureFlags) error {
	if flags.pullHost != "" {
		return runPull(flags)
	}

	cfg, err := loadConfigOrDefault(flags.config)
	if err != nil {
		return err
	}
	d, err := newDriver(cfg)
	if err != nil {
		return err
	}
	defer d.close()

	client := capture.Endpoint{IP: net.ParseIP(flags.clientIP), Port: uint16(cfg.Target.Port)}
	server := capture.Endpoint{IP: net.ParseIP(cfg.Target.Host), Port: uint16(cfg.Target.Port)}
	writer, err := capture.NewWriter(flags.output, client, server)
	if err != nil {
		return err
	}
	defer writer.Close()
	d.device.OnExchange = func(req, reply []byte) {
		writer.WriteRequest(req)
		writer.WriteResponse(reply)
	}

	if err := d.forwardOpen(); err != nil {
		return err
	}
	reply, pcErr := d.executePCCC(pccc.EncodeRequest(pccc.EchoRequest(1, []byte{0xCA, 0xFE})))
	if pcErr != nil {
		return pcErr
	}
	if err := d.forwardClose(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "captured session to %s\n", flags.output)
	if flags.copy {
		if err := capture.CopyHexToClipboard(reply); err != nil {
			return fmt.Errorf("ab2ctl: copy to clipboard: %w", err)
		}
		fmt.Fprintln(os.Stdout, "copied final PCCC reply hex to clipboard")
	}
	return nil
}

func runPull(flags *captureFlags) error {
	if flags.pullRemote == "" {
		return fmt.Errorf("ab2ctl: --pull-remote is required with --pull-host")
	}
	opts := transport.DefaultPullOptions()
	opts.User = flags.pullUser
	opts.KeyFile = flags.pullKey
	opts.InsecureIgnoreHost = flags.insecure

	local := flags.pullLocal
	if local == "" {
		local = flags.output
	}
	if err := transport.PullPcap(flags.pullHost, flags.pullRemote, local, opts); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "pulled %s:%s to %s\n", flags.pullHost, flags.pullRemote, local)
	return nil
}
