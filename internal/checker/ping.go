package checker

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/angeloszaimis/uptime-tracker/internal/service"
)

var (
	ErrPingTimeout     = errors.New("echo request timed out")
	ErrPingUnreachable = errors.New("destination unreachable")
)

const (
	protocolICMP     = 1
	protocolICMPv6   = 58
	echoPayload      = "uptime-tracker"
	maxEchoReplySize = 1500
)

// EchoFunc sends one echo request to host and waits for the reply until ctx
// is done.
type EchoFunc func(ctx context.Context, host string) error

type PingChecker struct {
	echo    EchoFunc
	timeout time.Duration
}

func NewPing() *PingChecker {
	return &PingChecker{echo: ICMPEcho, timeout: AttemptTimeout}
}

// NewPingWithEcho is NewPing with a custom echo function and per-attempt timeout.
func NewPingWithEcho(echo EchoFunc, timeout time.Duration) *PingChecker {
	return &PingChecker{echo: echo, timeout: timeout}
}

// Check sends up to Attempts echo requests and stops at the first reply.
// The last failure decides the cause.
func (c *PingChecker) Check(ctx context.Context, rec service.Record, now time.Time) service.Record {
	var lastErr error

	for i := 0; i < Attempts; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := c.echo(attemptCtx, rec.Address)
		cancel()

		if err == nil {
			return rec.MarkUp("OK", now)
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	var dnsErr *net.DNSError
	switch {
	case errors.Is(lastErr, ErrPingUnreachable):
		return rec.MarkDown(service.CauseUnreachable, "", "")
	case errors.As(lastErr, &dnsErr):
		return rec.MarkDown(service.CauseDNS, "", "")
	case errors.Is(lastErr, ErrPingTimeout), isTimeout(lastErr):
		return rec.MarkDown(service.CauseTimeout, "", "")
	default:
		return rec.MarkDown(service.CauseException, "", lastErr.Error())
	}
}

var echoSeq atomic.Uint32

// ICMPEcho pings host with an unprivileged datagram socket where the platform
// allows it, and a raw socket otherwise.
func ICMPEcho(ctx context.Context, host string) error {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return err
	}
	if len(addrs) == 0 {
		return &net.DNSError{Err: "no addresses", Name: host, IsNotFound: true}
	}

	ip := addrs[0].IP
	for _, a := range addrs {
		if a.IP.To4() != nil {
			ip = a.IP
			break
		}
	}

	conn, privileged, err := listenICMP(ip.To4() != nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}

	isV4 := ip.To4() != nil
	id := os.Getpid() & 0xffff
	seq := int(echoSeq.Add(1) & 0xffff)

	msg := icmp.Message{
		Code: 0,
		Body: &icmp.Echo{ID: id, Seq: seq, Data: []byte(echoPayload)},
	}
	proto := protocolICMP
	if isV4 {
		msg.Type = ipv4.ICMPTypeEcho
	} else {
		msg.Type = ipv6.ICMPTypeEchoRequest
		proto = protocolICMPv6
	}

	payload, err := msg.Marshal(nil)
	if err != nil {
		return fmt.Errorf("marshal echo: %w", err)
	}

	var dst net.Addr = &net.UDPAddr{IP: ip}
	if privileged {
		dst = &net.IPAddr{IP: ip}
	}

	if _, err := conn.WriteTo(payload, dst); err != nil {
		return fmt.Errorf("send echo: %w", err)
	}

	buf := make([]byte, maxEchoReplySize)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if isTimeout(err) {
				return ErrPingTimeout
			}
			return fmt.Errorf("read echo: %w", err)
		}

		if ours, err := matchEchoReply(proto, buf[:n], ip, id, seq, privileged); ours {
			return err
		}
	}
}

// matchEchoReply reports whether b answers the echo (id, seq) sent to dst. A
// destination unreachable only counts when it quotes that echo; raw sockets
// see every ICMP message the host receives. Datagram sockets get their
// identifier rewritten by the kernel, so id is only compared on raw sockets.
func matchEchoReply(proto int, b []byte, dst net.IP, id, seq int, privileged bool) (bool, error) {
	reply, err := icmp.ParseMessage(proto, b)
	if err != nil {
		return false, nil
	}

	switch reply.Type {
	case ipv4.ICMPTypeEchoReply, ipv6.ICMPTypeEchoReply:
		echo, ok := reply.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			return false, nil
		}
		if privileged && echo.ID != id {
			return false, nil
		}
		return true, nil
	case ipv4.ICMPTypeDestinationUnreachable, ipv6.ICMPTypeDestinationUnreachable:
		body, ok := reply.Body.(*icmp.DstUnreach)
		if !ok || !quotesEcho(proto, body.Data, dst, id, seq, privileged) {
			return false, nil
		}
		return true, ErrPingUnreachable
	}
	return false, nil
}

// quotesEcho checks the original datagram carried by an unreachable: its IP
// header followed by at least the first 8 bytes of the echo request.
func quotesEcho(proto int, data []byte, dst net.IP, id, seq int, privileged bool) bool {
	var inner []byte
	var echoType byte

	if proto == protocolICMP {
		if len(data) < ipv4.HeaderLen || data[0]>>4 != 4 {
			return false
		}
		hl := int(data[0]&0x0f) << 2
		if hl < ipv4.HeaderLen || len(data) < hl+8 || data[9] != protocolICMP {
			return false
		}
		if !net.IP(data[16:20]).Equal(dst) {
			return false
		}
		inner, echoType = data[hl:], byte(ipv4.ICMPTypeEcho)
	} else {
		if len(data) < ipv6.HeaderLen+8 || data[0]>>4 != 6 || data[6] != protocolICMPv6 {
			return false
		}
		if !net.IP(data[24:40]).Equal(dst) {
			return false
		}
		inner, echoType = data[ipv6.HeaderLen:], byte(ipv6.ICMPTypeEchoRequest)
	}

	if inner[0] != echoType || int(binary.BigEndian.Uint16(inner[6:8])) != seq {
		return false
	}
	return !privileged || int(binary.BigEndian.Uint16(inner[4:6])) == id
}

func listenICMP(v4 bool) (*icmp.PacketConn, bool, error) {
	if v4 {
		if conn, err := icmp.ListenPacket("udp4", "0.0.0.0"); err == nil {
			return conn, false, nil
		}
		conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
		return conn, true, err
	}

	if conn, err := icmp.ListenPacket("udp6", "::"); err == nil {
		return conn, false, nil
	}
	conn, err := icmp.ListenPacket("ip6:ipv6-icmp", "::")
	return conn, true, err
}
