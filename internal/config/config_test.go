package config_test

import (
	"errors"
	"testing"

	"github.com/okian/elove/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.BaseKFactor, convey.ShouldEqual, 32)
			convey.So(cfg.InitialScore, convey.ShouldEqual, 1200)
			convey.So(cfg.MaxUpdateAttempts, convey.ShouldEqual, 5)
			convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 100)
			convey.So(cfg.DefaultHistoryLimit, convey.ShouldEqual, 50)
			convey.So(cfg.MaxHistoryLimit, convey.ShouldEqual, 200)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with one invalid setting each", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":         func(c *config.Config) { c.Addr = " " },
			"unknown store":      func(c *config.Config) { c.Store = "redis" },
			"badger without dir": func(c *config.Config) { c.Store = config.StoreBadger; c.BadgerDir = "" },
			"zero k":             func(c *config.Config) { c.BaseKFactor = 0 },
			"score too low":      func(c *config.Config) { c.InitialScore = 99 },
			"score too high":     func(c *config.Config) { c.InitialScore = 3001 },
			"zero attempts":      func(c *config.Config) { c.MaxUpdateAttempts = 0 },
			"zero leaderboard":   func(c *config.Config) { c.MaxLeaderboardLimit = 0 },
			"history inverted":   func(c *config.Config) { c.DefaultHistoryLimit = 300 },
		}

		for name, mutate := range cases {
			cfg := config.New()
			mutate(cfg)

			convey.Convey("Then "+name+" is rejected", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}

		convey.Convey("Then badger in memory needs no directory", func() {
			cfg := config.New()
			cfg.Store = config.StoreBadger
			cfg.BadgerDir = ""
			cfg.BadgerInMemory = true
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
