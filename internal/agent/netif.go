package agent

import (
	"bufio"
	"context"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Netif abstracts the host's network availability.
//
// The agent does not configure radios; association here means the host can
// reach the probe target. All methods must be fast or bounded: Associate is
// the only call allowed to block, and only up to the timeout it is given.
type Netif interface {
	// Associate attempts to bring the link up, bounded by ctx.
	Associate(ctx context.Context) error

	// IsUp reports current availability without blocking the tick.
	IsUp() bool

	// IPAddress returns the local address facing the probe target, empty
	// when unknown.
	IPAddress() string

	// SignalStrength returns the wireless RSSI in dBm, 0 when the host
	// has no wireless link or the value is unavailable.
	SignalStrength() int
}

// recheckInterval bounds how often HostNetif re-probes on IsUp. In between,
// the cached verdict stands; a stale "up" is corrected at the broker layer
// by the session liveness check.
const recheckInterval = 5 * time.Second

// wirelessProcPath is the Linux wireless statistics file.
const wirelessProcPath = "/proc/net/wireless"

// HostNetif implements Netif with a bounded TCP dial probe.
type HostNetif struct {
	target  string
	timeout time.Duration

	mu        sync.Mutex
	up        bool
	localIP   string
	lastProbe time.Time
}

// NewHostNetif creates a HostNetif probing the given "host:port" target.
//
// Parameters:
//   - target: Address whose reachability defines "associated"; typically
//     the broker itself
//   - timeout: Bound on a single probe dial
func NewHostNetif(target string, timeout time.Duration) *HostNetif {
	return &HostNetif{target: target, timeout: timeout}
}

// Associate probes the target with a bounded dial.
func (n *HostNetif) Associate(ctx context.Context) error {
	dialer := net.Dialer{Timeout: n.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", n.target)

	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastProbe = time.Now()
	if err != nil {
		n.up = false
		return err
	}

	if addr, ok := conn.LocalAddr().(*net.TCPAddr); ok {
		n.localIP = addr.IP.String()
	}
	conn.Close()
	n.up = true
	return nil
}

// IsUp returns the cached probe verdict, re-probing when stale.
func (n *HostNetif) IsUp() bool {
	n.mu.Lock()
	stale := time.Since(n.lastProbe) >= recheckInterval
	up := n.up
	n.mu.Unlock()

	if !stale {
		return up
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	return n.Associate(ctx) == nil
}

// IPAddress returns the local address recorded by the last successful probe.
func (n *HostNetif) IPAddress() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.localIP
}

// SignalStrength reads the first wireless interface's RSSI from
// /proc/net/wireless. Hosts without a wireless link report 0.
func (n *HostNetif) SignalStrength() int {
	return readWirelessRSSI(wirelessProcPath)
}

// readWirelessRSSI parses the signal level column of the Linux wireless
// statistics file. Returns 0 on any parse difficulty; signal strength is a
// diagnostic field, never load-bearing.
func readWirelessRSSI(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		if line <= 2 {
			// Two header lines.
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		// Field 3 is the signal level, formatted like "-67."
		level := strings.TrimSuffix(fields[3], ".")
		if rssi, err := strconv.ParseFloat(level, 64); err == nil {
			return int(rssi)
		}
	}
	return 0
}
