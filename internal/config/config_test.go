package config_test

import (
	"context"
	"testing"

	"github.com/okian/rankforge/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoad(t *testing.T) {
	Convey("Given no configuration sources", t, func() {
		cfg, err := config.Load(context.Background())

		Convey("Then defaults apply", func() {
			So(err, ShouldBeNil)
			So(cfg.Workers, ShouldEqual, 4)
			So(cfg.PageSize, ShouldEqual, 500)
			So(cfg.LogLevel, ShouldEqual, "info")
			So(cfg.FrozenRankUpdates, ShouldBeFalse)
			So(cfg.AllowRankedMods, ShouldBeFalse)
		})
	})

	Convey("Given environment overrides", t, func() {
		t.Setenv("RANKFORGE_WORKERS", "8")
		t.Setenv("RANKFORGE_FROZEN_RANK_UPDATES", "true")
		t.Setenv("RANKFORGE_LOG_LEVEL", "debug")

		cfg, err := config.Load(context.Background())

		Convey("Then env wins over defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Workers, ShouldEqual, 8)
			So(cfg.FrozenRankUpdates, ShouldBeTrue)
			So(cfg.LogLevel, ShouldEqual, "debug")
		})
	})

	Convey("Given an emptied required value", t, func() {
		t.Setenv("RANKFORGE_REDIS_ADDR", "")

		Convey("Then loading is rejected", func() {
			_, err := config.Load(context.Background())
			So(err, ShouldNotBeNil)
		})
	})
}
