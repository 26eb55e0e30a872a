package internal_test

import (
	"strings"
	"time"

	"github.com/frahmantamala/maintenance-management/internal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func validConfig() *internal.Config {
	return &internal.Config{
		Server: internal.ServerConfig{
			Port:              8080,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
		},
		Database: internal.DatabaseConfig{
			Source:       "postgres://localhost/maintenance",
			MaxOpenConns: 10,
			MaxIdleConns: 2,
		},
		Security: internal.SecurityConfig{
			AccessTokenSecret:    strings.Repeat("a", 32),
			RefreshTokenSecret:   strings.Repeat("b", 32),
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 24 * time.Hour,
			BCryptCost:           12,
		},
		Worker: internal.WorkerConfig{LowStockSchedule: "0 7 * * *"},
		Observability: internal.ObservabilityConfig{
			Metrics: internal.MetricsConfig{Enabled: true, Path: "/metrics"},
			Logging: internal.LoggingConfig{Level: "info", Format: "json"},
		},
	}
}

var _ = Describe("Config", func() {
	It("accepts a complete configuration", func() {
		Expect(validConfig().Validate()).To(Succeed())
	})

	DescribeTable("rejects unsafe settings",
		func(mutate func(*internal.Config), fragment string) {
			cfg := validConfig()
			mutate(cfg)
			err := cfg.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring(fragment))
		},
		Entry("short access secret", func(c *internal.Config) { c.Security.AccessTokenSecret = "short" }, "access_token_secret"),
		Entry("shared secrets", func(c *internal.Config) { c.Security.RefreshTokenSecret = c.Security.AccessTokenSecret }, "must differ"),
		Entry("long access tokens", func(c *internal.Config) { c.Security.AccessTokenDuration = 2 * time.Hour }, "access_token_duration"),
		Entry("weak bcrypt cost", func(c *internal.Config) { c.Security.BCryptCost = 4 }, "bcrypt_cost"),
		Entry("missing database", func(c *internal.Config) { c.Database.Source = "" }, "database config"),
		Entry("idle above open", func(c *internal.Config) { c.Database.MaxIdleConns = 20 }, "max_idle_conns"),
		Entry("bad port", func(c *internal.Config) { c.Server.Port = 0 }, "invalid port"),
		Entry("redis without address", func(c *internal.Config) { c.Redis = internal.RedisConfig{Enabled: true} }, "redis config"),
		Entry("broken cron", func(c *internal.Config) { c.Worker.LowStockSchedule = "every morning" }, "low_stock_schedule"),
		Entry("unknown log level", func(c *internal.Config) { c.Observability.Logging.Level = "chatty" }, "log level"),
		Entry("tracing sample rate", func(c *internal.Config) {
			c.Observability.Tracing = internal.TracingConfig{Enabled: true, Endpoint: "otel:4317", ServiceName: "mm", SamplingRate: 2}
		}, "sampling_rate"),
	)

	It("reports every failing section at once", func() {
		cfg := validConfig()
		cfg.Server.Port = -1
		cfg.Database.Source = ""

		err := cfg.Validate()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("server config"))
		Expect(err.Error()).To(ContainSubstring("database config"))
	})

	Describe("LoadConfigFromEnv", func() {
		It("reads overrides and keeps defaults for the rest", func() {
			GinkgoT().Setenv("HTTP_PORT", "9090")
			GinkgoT().Setenv("WORKER_LOW_STOCK_SCHEDULE", "*/30 * * * *")
			GinkgoT().Setenv("REDIS_ENABLED", "false")
			GinkgoT().Setenv("HTTP_READ_TIMEOUT", "not-a-duration")

			cfg := internal.LoadConfigFromEnv()
			Expect(cfg.Server.Port).To(Equal(9090))
			Expect(cfg.Server.ReadTimeout).To(Equal(15 * time.Second))
			Expect(cfg.Worker.LowStockSchedule).To(Equal("*/30 * * * *"))
			Expect(cfg.Redis.Enabled).To(BeFalse())
			Expect(cfg.Notification.QueueKey).To(Equal("notifications:outbox"))
		})
	})
})
