// Package capture records the frames the layer engine builds or
// receives into a pcap file, synthesizing Ethernet/IPv4/TCP headers
// around the captured CIP payload so the result opens directly in
// Wireshark with the CIP dissector attached.
package capture

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/atotto/clipboard"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Endpoint identifies one side of the synthesized TCP conversation.
type Endpoint struct {
	IP   net.IP
	Port uint16
}

// Writer appends frames to a pcap file as synthesized TCP segments
// between a fixed client/server endpoint pair.
type Writer struct {
	file   *os.File
	pcapw  *pcapgo.Writer
	client Endpoint
	server Endpoint

	clientSeq uint32
	serverSeq uint32
}

// NewWriter creates outputFile and writes the pcap global header.
// client is the originator of connect/build traffic (our own
// encapsulation client); server is the PLC target. Ports default to
// 44818 (EtherNet/IP) when zero.
func NewWriter(outputFile string, client, server Endpoint) (*Writer, error) {
	if client.Port == 0 {
		client.Port = 44818
	}
	if server.Port == 0 {
		server.Port = 44818
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, fmt.Errorf("capture: create %s: %w", outputFile, err)
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, fmt.Errorf("capture: write pcap header: %w", err)
	}
	return &Writer{file: f, pcapw: w, client: client, server: server}, nil
}

// WriteRequest appends payload as a client->server TCP segment and
// advances the client sequence number.
func (c *Writer) WriteRequest(payload []byte) error {
	return c.write(c.client, c.server, &c.clientSeq, &c.serverSeq, payload)
}

// WriteResponse appends payload as a server->client TCP segment and
// advances the server sequence number.
func (c *Writer) WriteResponse(payload []byte) error {
	return c.write(c.server, c.client, &c.serverSeq, &c.clientSeq, payload)
}

func (c *Writer) write(src, dst Endpoint, srcSeq, dstSeq *uint32, payload []byte) error {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    srcIPOrDefault(src.IP),
		DstIP:    srcIPOrDefault(dst.IP),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(src.Port),
		DstPort: layers.TCPPort(dst.Port),
		Seq:     *srcSeq,
		Ack:     *dstSeq,
		PSH:     true,
		ACK:     true,
		Window:  65535,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return fmt.Errorf("capture: set checksum layer: %w", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("capture: serialize frame: %w", err)
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     time.Now(),
		CaptureLength: len(buf.Bytes()),
		Length:        len(buf.Bytes()),
	}
	if err := c.pcapw.WritePacket(ci, buf.Bytes()); err != nil {
		return fmt.Errorf("capture: write packet: %w", err)
	}
	*srcSeq += uint32(len(payload))
	return nil
}

func srcIPOrDefault(ip net.IP) net.IP {
	if ip == nil {
		return net.IPv4(127, 0, 0, 1)
	}
	return ip.To4()
}

// Close flushes and closes the underlying pcap file.
func (c *Writer) Close() error {
	return c.file.Close()
}

// CopyHexToClipboard copies data's hex dump to the system clipboard,
// for pasting a captured frame into a bug report; used by
// "ab2ctl capture --copy".
func CopyHexToClipboard(data []byte) error {
	return clipboard.WriteAll(fmt.Sprintf("% X", data))
}
