package notification_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/frahmantamala/maintenance-management/internal/core/events"
	"github.com/frahmantamala/maintenance-management/internal/notification"
	"github.com/frahmantamala/maintenance-management/internal/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
)

func TestNotification(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Notification Suite")
}

type directory map[int64]*user.User

func (d directory) GetByID(_ context.Context, id int64) (*user.User, error) {
	if u, ok := d[id]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

type recordingSender struct {
	mu   sync.Mutex
	sent []notification.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg notification.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

func (s *recordingSender) messages() []notification.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notification.Message(nil), s.sent...)
}

type brokenNotifier struct{ calls int }

func (b *brokenNotifier) Notify(context.Context, notification.Message) error {
	b.calls++
	return errors.New("redis unavailable")
}

var _ = Describe("Notifications", func() {
	var (
		server *miniredis.Miniredis
		client *redis.Client
		outbox *notification.RedisOutbox
		logger *slog.Logger
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		server, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		client = redis.NewClient(&redis.Options{Addr: server.Addr()})
		outbox = notification.NewRedisOutbox(client, "test:outbox")
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		ctx = context.Background()
	})

	AfterEach(func() {
		client.Close()
		server.Close()
	})

	Describe("RedisOutbox", func() {
		It("delivers messages in the order they were queued", func() {
			first := notification.NewMessage(notification.KindWelcome, "a@example.com", "first", nil)
			second := notification.NewMessage(notification.KindWelcome, "b@example.com", "second", nil)
			Expect(outbox.Notify(ctx, first)).To(Succeed())
			Expect(outbox.Notify(ctx, second)).To(Succeed())

			n, err := outbox.Len(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(2)))

			got, err := outbox.Pop(ctx, time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(first.ID))
			Expect(got.Recipient).To(Equal("a@example.com"))

			got, err = outbox.Pop(ctx, time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Subject).To(Equal("second"))
		})

		It("returns nothing once the wait elapses on an empty queue", func() {
			got, err := outbox.Pop(ctx, time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})

		It("stores JSON under the configured key", func() {
			msg := notification.NewMessage(notification.KindMaterialLowStock, "ops@example.com", "Low stock: Filtr F7", nil)
			Expect(outbox.Notify(ctx, msg)).To(Succeed())

			items, err := server.List("test:outbox")
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0]).To(ContainSubstring(`"kind":"material_low_stock"`))
		})
	})

	Describe("Dispatcher", func() {
		var bus *events.EventBus

		BeforeEach(func() {
			bus = events.NewEventBus(logger)
			people := directory{
				3: {ID: 3, Email: "tech@example.com"},
				4: {ID: 4, Email: "manager@example.com"},
			}
			notification.NewDispatcher(outbox, people, "admin@example.com", logger).Register(bus)
		})

		drain := func() []notification.Message {
			var out []notification.Message
			for {
				n, _ := outbox.Len(ctx)
				if n == 0 {
					return out
				}
				msg, err := outbox.Pop(ctx, time.Second)
				Expect(err).NotTo(HaveOccurred())
				out = append(out, *msg)
			}
		}

		It("greets a registrant and alerts the administrator", func() {
			Expect(bus.PublishSync(ctx, events.NewUserRegisteredEvent(9, "new@example.com", "Jan Kowalski"))).To(Succeed())

			msgs := drain()
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].Kind).To(Equal(notification.KindWelcome))
			Expect(msgs[0].Recipient).To(Equal("new@example.com"))
			Expect(msgs[1].Kind).To(Equal(notification.KindAdminNewUser))
			Expect(msgs[1].Recipient).To(Equal("admin@example.com"))
		})

		It("addresses an assignment to the assignee", func() {
			Expect(bus.PublishSync(ctx, events.NewWorkItemAssignedEvent("task", 11, "Wymiana filtra", 3, 4))).To(Succeed())

			msgs := drain()
			Expect(msgs).To(HaveLen(1))
			Expect(msgs[0].Kind).To(Equal(notification.KindWorkAssigned))
			Expect(msgs[0].Recipient).To(Equal("tech@example.com"))
			Expect(msgs[0].Subject).To(ContainSubstring("Wymiana filtra"))
		})

		It("addresses a completion to the creator", func() {
			Expect(bus.PublishSync(ctx, events.NewWorkItemCompletedEvent("defect", 5, "Wyciek", 4, 3, time.Now()))).To(Succeed())

			msgs := drain()
			Expect(msgs).To(HaveLen(1))
			Expect(msgs[0].Recipient).To(Equal("manager@example.com"))
		})

		It("sends low stock alerts to the administrator", func() {
			Expect(bus.PublishSync(ctx, events.NewMaterialLowStockEvent(7, "Filtr F7", "szt", 2, 5))).To(Succeed())

			msgs := drain()
			Expect(msgs).To(HaveLen(1))
			Expect(msgs[0].Recipient).To(Equal("admin@example.com"))
			Expect(msgs[0].Data).To(HaveKeyWithValue("name", "Filtr F7"))
		})

		It("skips an event whose recipient cannot be resolved", func() {
			Expect(bus.PublishSync(ctx, events.NewWorkItemAssignedEvent("task", 11, "Wymiana filtra", 99, 4))).To(Succeed())
			Expect(drain()).To(BeEmpty())
		})

		It("never fails the publisher when the notifier fails", func() {
			broken := &brokenNotifier{}
			isolated := events.NewEventBus(logger)
			notification.NewDispatcher(broken, directory{}, "admin@example.com", logger).Register(isolated)

			Expect(isolated.PublishSync(ctx, events.NewUserApprovedEvent(9, "new@example.com", "Jan", "technician"))).To(Succeed())
			Expect(broken.calls).To(Equal(1))
		})

		It("drops messages without a recipient", func() {
			isolated := events.NewEventBus(logger)
			notification.NewDispatcher(outbox, directory{}, "", logger).Register(isolated)

			Expect(isolated.PublishSync(ctx, events.NewMaterialLowStockEvent(7, "Filtr F7", "szt", 2, 5))).To(Succeed())
			Expect(drain()).To(BeEmpty())
		})
	})

	Describe("Relay", func() {
		It("hands queued messages to the sender", func() {
			sender := &recordingSender{}
			relay := notification.NewRelay(outbox, sender, time.Second, logger)

			msg := notification.NewMessage(notification.KindAccountApproved, "a@example.com", "approved", nil)
			Expect(outbox.Notify(ctx, msg)).To(Succeed())

			handled, err := relay.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(handled).To(BeTrue())
			Expect(sender.messages()).To(HaveLen(1))
			Expect(sender.messages()[0].ID).To(Equal(msg.ID))
		})

		It("drops a message the sender refuses", func() {
			sender := &recordingSender{err: errors.New("smtp down")}
			relay := notification.NewRelay(outbox, sender, time.Second, logger)
			Expect(outbox.Notify(ctx, notification.NewMessage(notification.KindWelcome, "a@example.com", "hi", nil))).To(Succeed())

			handled, err := relay.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(handled).To(BeTrue())

			n, err := outbox.Len(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
		})

		It("stops when its context is cancelled", func() {
			sender := &recordingSender{}
			relay := notification.NewRelay(outbox, sender, time.Second, logger)
			Expect(outbox.Notify(ctx, notification.NewMessage(notification.KindWelcome, "a@example.com", "hi", nil))).To(Succeed())

			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- relay.Run(runCtx) }()

			Eventually(func() int { return len(sender.messages()) }, 3*time.Second).Should(Equal(1))
			cancel()
			Eventually(done, 5*time.Second).Should(Receive(BeNil()))
		})
	})
})
