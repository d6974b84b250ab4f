package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/soprofile/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":5000")
			convey.So(cfg.CachePeriod(), convey.ShouldEqual, 10*time.Minute)
			convey.So(cfg.UserTTL(), convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.PollInterval(), convey.ShouldEqual, 4*time.Second)
			convey.So(cfg.MaxLeagueLimit, convey.ShouldEqual, 100)
			convey.So(cfg.LeagueTags, convey.ShouldContain, "javascript")
			convey.So(cfg.Validate(context.Background()), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid settings", t, func() {
		ctx := context.Background()
		mutations := map[string]func(*config.Config){
			"addr":        func(c *config.Config) { c.Addr = "" },
			"db path":     func(c *config.Config) { c.DBPath = "" },
			"poll":        func(c *config.Config) { c.PollIntervalMS = 0 },
			"workers":     func(c *config.Config) { c.LeagueWorkers = 0 },
			"limit":       func(c *config.Config) { c.MaxLeagueLimit = -1 },
			"log format":  func(c *config.Config) { c.LogFormat = "xml" },
			"user ttl":    func(c *config.Config) { c.UserCacheTTLHours = 0 },
			"req timeout": func(c *config.Config) { c.RequestTimeoutMS = 0 },
		}

		convey.Convey("Then each is reported as an invalid config", func() {
			for _, mutate := range mutations {
				cfg := config.New()
				mutate(cfg)
				err := cfg.Validate(ctx)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			}
		})
	})
}
