// Package diag holds field-diagnostic tooling that observes the adapter
// without participating in its protocol logic: currently a pcap trace
// writer of inbound and outbound encapsulation frames.
package diag

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Direction distinguishes a captured frame's flow relative to the adapter.
type Direction int

const (
	DirectionInbound Direction = iota
	DirectionOutbound
)

// Trace synthesizes an Ethernet/IP/TCP or Ethernet/IP/UDP frame around each
// captured payload and appends it to a pcap file, for opening in Wireshark
// alongside a live capture. Grounded on the teacher's internal/validation/
// fixtures pcap_writer.go, which builds the same kind of synthetic
// Ethernet+IP+TCP wrapper around raw ENIP bytes for test fixtures; this is
// that same technique pointed at live traffic instead of generated
// validation vectors.
type Trace struct {
	mu     sync.Mutex
	file   *os.File
	writer *pcapgo.Writer

	localMAC, peerMAC net.HardwareAddr
}

// NewTrace creates path (truncating any existing file) and writes the pcap
// file header. Call Close when done.
func NewTrace(path string) (*Trace, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("diag: create pcap %s: %w", path, err)
	}
	w := pcapgo.NewWriter(file)
	if err := w.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		file.Close()
		return nil, fmt.Errorf("diag: write pcap header: %w", err)
	}
	return &Trace{
		file:     file,
		writer:   w,
		localMAC: net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x01},
		peerMAC:  net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x02},
	}, nil
}

// Close flushes and closes the underlying pcap file.
func (t *Trace) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Close()
}

// WriteTCP appends an encapsulation frame carried over an explicit-messaging
// TCP session (SendRRData/SendUnitData). localAddr/peerAddr are host:port
// strings; dir determines which side is the source.
func (t *Trace) WriteTCP(dir Direction, localAddr, peerAddr string, payload []byte) error {
	localIP, localPort, err := splitHostPort(localAddr)
	if err != nil {
		return err
	}
	peerIP, peerPort, err := splitHostPort(peerAddr)
	if err != nil {
		return err
	}

	srcIP, dstIP, srcPort, dstPort, srcMAC, dstMAC := t.orient(dir, localIP, peerIP, localPort, peerPort)

	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: srcIP, DstIP: dstIP}
	tcp := &layers.TCP{SrcPort: layers.TCPPort(srcPort), DstPort: layers.TCPPort(dstPort), ACK: true, PSH: true}
	_ = tcp.SetNetworkLayerForChecksum(ip)

	return t.write(eth, ip, tcp, payload)
}

// WriteUDP appends a Class-0/Class-1 I/O datagram or an unconnected
// List-Identity/List-Interfaces exchange.
func (t *Trace) WriteUDP(dir Direction, localAddr, peerAddr string, payload []byte) error {
	localIP, localPort, err := splitHostPort(localAddr)
	if err != nil {
		return err
	}
	peerIP, peerPort, err := splitHostPort(peerAddr)
	if err != nil {
		return err
	}

	srcIP, dstIP, srcPort, dstPort, srcMAC, dstMAC := t.orient(dir, localIP, peerIP, localPort, peerPort)

	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: srcIP, DstIP: dstIP}
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	_ = udp.SetNetworkLayerForChecksum(ip)

	return t.write(eth, ip, udp, payload)
}

func (t *Trace) orient(dir Direction, localIP, peerIP net.IP, localPort, peerPort uint16) (srcIP, dstIP net.IP, srcPort, dstPort uint16, srcMAC, dstMAC net.HardwareAddr) {
	if dir == DirectionOutbound {
		return localIP, peerIP, localPort, peerPort, t.localMAC, t.peerMAC
	}
	return peerIP, localIP, peerPort, localPort, t.peerMAC, t.localMAC
}

func (t *Trace) write(eth *layers.Ethernet, ip *layers.IPv4, transport gopacket.SerializableLayer, payload []byte) error {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, transport, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("diag: serialize frame: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writer.WritePacket(gopacket.CaptureInfo{
		CaptureLength: len(buf.Bytes()),
		Length:        len(buf.Bytes()),
	}, buf.Bytes())
}

func splitHostPort(addr string) (net.IP, uint16, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, 0, fmt.Errorf("diag: split host:port %q: %w", addr, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, 0, fmt.Errorf("diag: invalid ip %q", host)
	}
	var port uint16
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return nil, 0, fmt.Errorf("diag: invalid port %q: %w", portStr, err)
	}
	return ip.To4(), port, nil
}
