package checker_test

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/uptime-tracker/internal/checker"
	"github.com/angeloszaimis/uptime-tracker/internal/service"
)

var _ = Describe("TCPChecker", func() {
	var (
		ctx context.Context
		now time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	})

	tcpRecord := func(address string) service.Record {
		return service.Record{Name: "tcp", Address: address, Kind: service.KindTCP}.Untested()
	}

	It("should report a listening port as up", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		defer ln.Close()

		got := checker.NewTCP().Check(ctx, tcpRecord(ln.Addr().String()), now)
		Expect(got.IsUp()).To(BeTrue())
		Expect(got.Live()).To(Equal("OK"))
		Expect(got.CheckTime).To(Equal(now))
	})

	It("should report a connect fault as an exception", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		addr := ln.Addr().String()
		ln.Close()

		got := checker.NewTCP().Check(ctx, tcpRecord(addr), now)
		Expect(got.IsUp()).To(BeFalse())
		Expect(got.Live()).To(Equal("Error:Exception!"))
		Expect(got.ErrorText).NotTo(BeEmpty())
	})

	DescribeTable("rejects malformed addresses without dialing",
		func(address string) {
			var dials atomic.Int32
			dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
				dials.Add(1)
				return nil, errors.New("should not dial")
			}

			got := checker.NewTCPWithDialer(dial, time.Second).Check(ctx, tcpRecord(address), now)
			Expect(got.Live()).To(Equal("Error:Invalid address"))
			Expect(dials.Load()).To(BeZero())
		},
		Entry("no colon", "not-a-valid-address"),
		Entry("non numeric port", "host:http"),
		Entry("too many colons", "a:b:80"),
		Entry("port out of range", "host:70000"),
	)

	It("should retry timed out attempts and then report a timeout", func() {
		var dials atomic.Int32
		dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
			dials.Add(1)
			<-ctx.Done()
			return nil, ctx.Err()
		}

		got := checker.NewTCPWithDialer(dial, 20*time.Millisecond).Check(ctx, tcpRecord("10.0.0.1:22"), now)
		Expect(dials.Load()).To(BeEquivalentTo(checker.Attempts))
		Expect(got.Live()).To(Equal("Error:Timeout"))
		Expect(got.CheckTime).To(Equal(service.Sentinel))
	})

	It("should succeed on a later attempt", func() {
		var dials atomic.Int32
		dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
			if dials.Add(1) < 3 {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			client, server := net.Pipe()
			server.Close()
			return client, nil
		}

		got := checker.NewTCPWithDialer(dial, 20*time.Millisecond).Check(ctx, tcpRecord("db:5432"), now)
		Expect(dials.Load()).To(BeEquivalentTo(3))
		Expect(got.IsUp()).To(BeTrue())
	})
})
