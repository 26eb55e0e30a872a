package events_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/frahmantamala/maintenance-management/internal/core/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestEvents(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Events Suite")
}

var _ = Describe("EventBus", func() {
	var (
		bus *events.EventBus
		ctx context.Context
	)

	BeforeEach(func() {
		bus = events.NewEventBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
		ctx = context.Background()
	})

	It("runs every subscriber of a published event before Wait returns", func() {
		var calls atomic.Int32
		for i := 0; i < 3; i++ {
			bus.Subscribe(events.EventTypeMaterialLowStock, func(context.Context, events.Event) error {
				time.Sleep(10 * time.Millisecond)
				calls.Add(1)
				return nil
			})
		}

		Expect(bus.Publish(ctx, events.NewMaterialLowStockEvent(1, "Filtr F7", "szt", 2, 5))).To(Succeed())
		Expect(bus.Wait(ctx)).To(Succeed())
		Expect(calls.Load()).To(Equal(int32(3)))
	})

	It("keeps handlers running after the publishing request is cancelled", func() {
		seen := make(chan error, 1)
		bus.Subscribe(events.EventTypeUserApproved, func(hctx context.Context, _ events.Event) error {
			seen <- hctx.Err()
			return nil
		})

		reqCtx, cancel := context.WithCancel(ctx)
		cancel()
		Expect(bus.Publish(reqCtx, events.NewUserApprovedEvent(1, "a@b.pl", "A", "technician"))).To(Succeed())
		Eventually(seen).Should(Receive(BeNil()))
	})

	It("contains a panicking asynchronous handler", func() {
		bus.Subscribe(events.EventTypeUserRegistered, func(context.Context, events.Event) error {
			panic("boom")
		})

		Expect(bus.Publish(ctx, events.NewUserRegisteredEvent(1, "a@b.pl", "A"))).To(Succeed())
		Expect(bus.Wait(ctx)).To(Succeed())
	})

	It("returns the first handler error from PublishSync", func() {
		var second bool
		bus.Subscribe(events.EventTypeUserRejected, func(context.Context, events.Event) error {
			return errors.New("smtp down")
		})
		bus.Subscribe(events.EventTypeUserRejected, func(context.Context, events.Event) error {
			second = true
			return nil
		})

		err := bus.PublishSync(ctx, events.NewUserRejectedEvent(1, "a@b.pl", "A", "duplicate"))
		Expect(err).To(MatchError(ContainSubstring("smtp down")))
		Expect(second).To(BeFalse())
	})

	It("ignores events nobody listens to", func() {
		Expect(bus.PublishSync(ctx, events.NewUserChangedEvent(4))).To(Succeed())
		Expect(bus.Publish(ctx, events.NewUserChangedEvent(4))).To(Succeed())
	})

	It("gives up waiting when the context ends first", func() {
		release := make(chan struct{})
		bus.Subscribe(events.EventTypeUserChanged, func(context.Context, events.Event) error {
			<-release
			return nil
		})
		Expect(bus.Publish(ctx, events.NewUserChangedEvent(4))).To(Succeed())

		short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		Expect(bus.Wait(short)).To(MatchError(context.DeadlineExceeded))

		close(release)
		Expect(bus.Wait(ctx)).To(Succeed())
	})
})
