// Package transport fetches previously-recorded pcap capture files
// from a remote diagnostic host over SFTP, for the `ab2ctl capture
// --pull-host` flow. It is not the EtherNet/IP TCP transport the layer
// engine runs over — that transport is an external collaborator
// represented in tests by an in-memory double.
package transport

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// PullOptions configures the SSH connection used to fetch a remote
// pcap file.
type PullOptions struct {
	User               string
	KeyFile            string
	Password           string
	Port               int
	KnownHostsFile     string
	InsecureIgnoreHost bool
	ConnectTimeout     time.Duration
}

// DefaultPullOptions returns sensible defaults: port 22, a 30 second
// connect timeout, and the caller's own known_hosts file.
func DefaultPullOptions() PullOptions {
	return PullOptions{Port: 22, ConnectTimeout: 30 * time.Second}
}

// PullPcap dials host over SSH, authenticates with opts, and copies
// remotePath to localPath via SFTP. It opens and tears down the
// connection for a single file; callers doing repeated pulls should
// wrap this in their own connection pool if that matters to them.
func PullPcap(host, remotePath, localPath string, opts PullOptions) error {
	config, err := buildClientConfig(opts)
	if err != nil {
		return fmt.Errorf("transport: build SSH config: %w", err)
	}

	port := opts.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	defer client.Close()

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return fmt.Errorf("transport: start SFTP session: %w", err)
	}
	defer sftpClient.Close()

	remote, err := sftpClient.Open(remotePath)
	if err != nil {
		return fmt.Errorf("transport: open remote %s: %w", remotePath, err)
	}
	defer remote.Close()

	local, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("transport: create %s: %w", localPath, err)
	}
	defer local.Close()

	if _, err := remote.WriteTo(local); err != nil {
		return fmt.Errorf("transport: copy %s to %s: %w", remotePath, localPath, err)
	}
	return nil
}

func buildClientConfig(opts PullOptions) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	if opts.KeyFile != "" {
		keyBytes, err := os.ReadFile(opts.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file %s: %w", opts.KeyFile, err)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parse key file %s: %w", opts.KeyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if opts.Password != "" {
		auth = append(auth, ssh.Password(opts.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("no authentication method configured (set KeyFile or Password)")
	}

	hostKeyCallback, err := buildHostKeyCallback(opts)
	if err != nil {
		return nil, err
	}

	user := opts.User
	if user == "" {
		user = os.Getenv("USER")
	}

	timeout := opts.ConnectTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}, nil
}

func buildHostKeyCallback(opts PullOptions) (ssh.HostKeyCallback, error) {
	if opts.InsecureIgnoreHost {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	known := opts.KnownHostsFile
	if known == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate known_hosts: %w", err)
		}
		known = filepath.Join(home, ".ssh", "known_hosts")
	}
	if _, err := os.Stat(known); err != nil {
		return nil, fmt.Errorf("known_hosts file %s: %w (set InsecureIgnoreHost to skip verification)", known, err)
	}
	return knownhosts.New(known)
}
