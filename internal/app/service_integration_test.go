package service_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/gachasim/internal/adapters/repository"
	service "github.com/okian/gachasim/internal/app"
	"github.com/okian/gachasim/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestService_PersistenceAcrossRestarts(t *testing.T) {
	Convey("Given a service backed by a sqlite file", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		dsn := filepath.Join(t.TempDir(), "gacha.db")
		opts := []service.Option{service.WithStoreDriver(repository.DriverSQLite, dsn)}

		first := newService(opts...)
		So(first.Start(ctx), ShouldBeNil)

		_, err := first.SelectBanner(ctx, "beta")
		So(err, ShouldBeNil)
		_, err = first.SelectBanner(ctx, "alpha")
		So(err, ShouldBeNil)
		for i := 0; i < 3; i++ {
			_, err := first.PullTen(ctx, "")
			So(err, ShouldBeNil)
		}
		_, err = first.PullSingle(ctx, true, "")
		So(err, ShouldBeNil)
		before, _ := first.Export(ctx)
		So(first.Stop(ctx), ShouldBeNil)

		Convey("When a new service opens the same file", func() {
			second := newService(opts...)
			So(second.Start(ctx), ShouldBeNil)
			defer func() { _ = second.Stop(ctx) }()

			Convey("Then the whole session is restored", func() {
				after, err := second.Export(ctx)
				So(err, ShouldBeNil)
				So(after.CurrencyLedger, ShouldResemble, model.CurrencyLedger{
					Crystals: model.DefaultCrystals - 150,
					Tickets:  model.DefaultTickets - 1,
				})
				So(after.Levels, ShouldResemble, before.Levels)
				So(after.Stats.Equal(before.Stats), ShouldBeTrue)
				So(after.Stats.TotalPulls, ShouldEqual, 31)
				So(len(after.History), ShouldEqual, 4)
				So(after.SelectedBanner, ShouldEqual, "alpha")

				stats := second.GetStats()
				So(stats["storeUnavailable"], ShouldEqual, false)
				So(stats["restoreFallbacks"], ShouldBeEmpty)
			})
		})
	})

	Convey("Given a store with a corrupt history value", t, func() {
		ctx := context.Background()
		dsn := filepath.Join(t.TempDir(), "gacha.db")
		store, err := repository.NewSQLiteStore(ctx, dsn)
		So(err, ShouldBeNil)
		So(store.SetMany(ctx, map[string]string{
			repository.KeyCrystals:       "777",
			repository.KeyHistory:        "garbage",
			repository.KeyStats:          `{"totalPulls":99,"rarityCounts":{"3":99},"rateUpCount":0}`,
			repository.KeySelectedBanner: "gone",
		}), ShouldBeNil)
		So(store.Close(), ShouldBeNil)

		svc := newService(service.WithStoreDriver(repository.DriverSQLite, dsn))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("Then the readable keys survive and stats follow history", func() {
			snap, _ := svc.Export(ctx)
			So(snap.Crystals, ShouldEqual, 777)
			So(snap.History, ShouldBeEmpty)
			So(snap.Stats.TotalPulls, ShouldEqual, 0)
			So(snap.SelectedBanner, ShouldEqual, "alpha")

			stats := svc.GetStats()
			So(stats["restoreFallbacks"], ShouldResemble, []string{repository.KeyHistory})
			So(stats["statsRecomputed"], ShouldEqual, true)
		})
	})

	Convey("Given an unknown store driver", t, func() {
		ctx := context.Background()
		svc := newService(service.WithStoreDriver("redis", "x"))

		Convey("Then the service still starts in memory", func() {
			So(svc.Start(ctx), ShouldBeNil)
			defer func() { _ = svc.Stop(ctx) }()
			resp, err := svc.PullTen(ctx, "")
			So(err, ShouldBeNil)
			So(len(resp.Results), ShouldEqual, 10)
		})
	})
}
