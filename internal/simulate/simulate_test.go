package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/gachasim/internal/adapters/catalog"
	"github.com/okian/gachasim/internal/adapters/http/api"
	service "github.com/okian/gachasim/internal/app"
	"github.com/okian/gachasim/internal/domain/model"
	"github.com/okian/gachasim/internal/domain/rates"
	. "github.com/smartystreets/goconvey/convey"
)

func defaultBanner() model.Banner {
	cat := catalog.New()
	So(cat.LoadDefault(context.Background()), ShouldBeNil)
	b, ok := cat.First()
	So(ok, ShouldBeTrue)
	return b
}

func TestExpect(t *testing.T) {
	Convey("Given the production rates", t, func() {
		e := Expect(rates.Build(nil, rates.DefaultConfig()))

		Convey("Ordinary slots follow the base rates", func() {
			So(e.Ordinary[model.Rarity5], ShouldAlmostEqual, 0.02, 1e-12)
			So(e.Ordinary[model.Rarity4], ShouldAlmostEqual, 0.16, 1e-12)
			So(e.Ordinary[model.Rarity3], ShouldAlmostEqual, 0.82, 1e-12)
		})

		Convey("The boosted tenth slot leaves no room for 3★", func() {
			So(e.Tenth[model.Rarity5], ShouldAlmostEqual, 0.04, 1e-12)
			So(e.Tenth[model.Rarity4], ShouldAlmostEqual, 0.96, 1e-12)
			So(e.Tenth[model.Rarity3], ShouldAlmostEqual, 0, 1e-12)
		})
	})

	Convey("Given a table without 5★ mass", t, func() {
		table := rates.Table{
			model.Rarity5: {},
			model.Rarity4: {Total: 0.1, Normal: 0.1},
			model.Rarity3: {Total: 0.9, Normal: 0.9},
		}
		e := Expect(table)

		Convey("The floor moves the all-3★ case onto 4★", func() {
			allThree := math.Pow(0.9, 9) * 0.04
			So(e.Tenth[model.Rarity5], ShouldAlmostEqual, 0, 1e-12)
			So(e.Tenth[model.Rarity4], ShouldAlmostEqual, 0.96+allThree, 1e-12)
			So(e.Tenth[model.Rarity3], ShouldAlmostEqual, 0.04-allThree, 1e-12)
			So(e.Tenth[model.Rarity5]+e.Tenth[model.Rarity4]+e.Tenth[model.Rarity3], ShouldAlmostEqual, 1, 1e-12)
		})
	})
}

func TestTally(t *testing.T) {
	Convey("Given a tally", t, func() {
		tl := NewTally()
		three := model.PullResult{CharacterID: "c", Rarity: model.Rarity3}
		four := model.PullResult{CharacterID: "b", Rarity: model.Rarity4, IsRateUp: true}
		filler := model.PullResult{CharacterID: model.PlaceholderPrefix + "x", Rarity: model.Rarity5, IsRateUp: true}

		batch := make([]model.PullResult, 10)
		for i := range batch {
			batch[i] = three
		}
		batch[9] = four

		Convey("Ten-pulls split ordinary and tenth slots", func() {
			tl.AddTen(batch, true)
			So(tl.Batches, ShouldEqual, 1)
			So(tl.Guaranteed, ShouldEqual, 1)
			So(tl.OrdinarySlots, ShouldEqual, 9)
			So(tl.Ordinary[model.Rarity3], ShouldEqual, 9)
			So(tl.TenthSlots, ShouldEqual, 1)
			So(tl.Tenth[model.Rarity4], ShouldEqual, 1)
			So(tl.RateUp[model.Rarity4], ShouldEqual, 1)
			So(tl.GuaranteeViolations, ShouldEqual, 0)
		})

		Convey("A batch with no 4★ is a violation", func() {
			batch[9] = three
			tl.AddTen(batch, false)
			So(tl.GuaranteeViolations, ShouldEqual, 1)
		})

		Convey("Placeholders never count as rate-up", func() {
			tl.AddSingle(filler)
			So(tl.Placeholders, ShouldEqual, 1)
			So(tl.RateUp[model.Rarity5], ShouldEqual, 0)
			So(tl.Ordinary[model.Rarity5], ShouldEqual, 1)
		})

		Convey("Merge sums every counter", func() {
			tl.AddTen(batch, false)
			other := NewTally()
			other.AddSingle(four)
			other.Replays = 2
			tl.Merge(other)
			So(tl.Slots(), ShouldEqual, 11)
			So(tl.Singles, ShouldEqual, 1)
			So(tl.RateUp[model.Rarity4], ShouldEqual, 2)
			So(tl.Replays, ShouldEqual, 2)
		})
	})
}

func TestConfigValidate(t *testing.T) {
	Convey("Given run configs", t, func() {
		cfg := DefaultConfig()
		So(cfg.Validate(), ShouldBeNil)

		cfg.Sessions = 0
		So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)

		cfg = DefaultConfig()
		cfg.TenPulls, cfg.Singles = 0, 0
		So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)

		cfg = Config{Sessions: 1, Singles: 3}
		So(cfg.Validate(), ShouldBeNil)
		So(cfg.Workers, ShouldEqual, 1)
		So(cfg.Sigma, ShouldEqual, DefaultSigma)

		crystals, tickets := cfg.wallet()
		So(crystals, ShouldEqual, 5)
		So(tickets, ShouldEqual, 2)
	})
}

func TestRunLocal(t *testing.T) {
	Convey("Given a seeded local campaign on the built-in banner", t, func() {
		ctx := context.Background()
		banner := defaultBanner()
		cfg := Config{Sessions: 200, TenPulls: 5, Singles: 4, Workers: 4, Seed: 7}

		report, err := RunLocal(ctx, cfg, banner)
		So(err, ShouldBeNil)

		Convey("Every pull is counted and every wallet drained", func() {
			So(report.Mode, ShouldEqual, ModeLocal)
			So(report.Tally.Batches, ShouldEqual, 1000)
			So(report.Tally.Singles, ShouldEqual, 800)
			So(report.Tally.OrdinarySlots, ShouldEqual, 9800)
			So(report.Tally.TenthSlots, ShouldEqual, 1000)
		})

		Convey("The floor always holds and rarities match the table", func() {
			So(report.Tally.GuaranteeViolations, ShouldEqual, 0)
			So(report.Tally.Tenth[model.Rarity3], ShouldEqual, 0)
			for _, c := range report.Checks {
				So(c.OK, ShouldBeTrue)
			}
			So(report.Pass, ShouldBeTrue)
		})

		Convey("The result does not depend on the worker count", func() {
			cfg.Workers = 1
			serial, err := RunLocal(ctx, cfg, banner)
			So(err, ShouldBeNil)
			So(serial.Tally, ShouldResemble, report.Tally)
		})
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := RunLocal(ctx, Config{Sessions: 10, TenPulls: 1, Workers: 2, Seed: 1}, defaultBanner())
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}

func TestRun(t *testing.T) {
	Convey("Given a local run with a report file", t, func() {
		out := filepath.Join(t.TempDir(), "reports", "run.json")
		report, err := Run(context.Background(), Config{Sessions: 5, TenPulls: 2, Seed: 3, OutputFile: out})
		So(err, ShouldBeNil)
		So(report.RunID, ShouldNotBeEmpty)

		raw, err := os.ReadFile(out)
		So(err, ShouldBeNil)
		var saved map[string]any
		So(json.Unmarshal(raw, &saved), ShouldBeNil)
		So(saved["run_id"], ShouldEqual, report.RunID)
		So(saved["banner_id"], ShouldEqual, "starter")
	})

	Convey("Given an unknown banner", t, func() {
		_, err := Run(context.Background(), Config{Sessions: 1, TenPulls: 1, BannerID: "nope"})
		So(errors.Is(err, catalog.ErrBannerNotFound), ShouldBeTrue)
	})
}

func TestRunRemote(t *testing.T) {
	Convey("Given a running server", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		svc := service.New(service.WithRevealDelay(0), service.WithRNGSeed(5))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		Convey("The campaign drains the wallet and verifies replays", func() {
			cfg := Config{BaseURL: srv.URL, Sessions: 2, TenPulls: 11, Singles: 3}
			report, err := RunRemote(ctx, cfg)
			So(err, ShouldBeNil)
			So(report.Mode, ShouldEqual, ModeRemote)
			So(report.BannerID, ShouldEqual, "starter")
			So(report.Tally.Batches, ShouldEqual, 22)
			So(report.Tally.Singles, ShouldEqual, 6)
			So(report.Tally.Replays, ShouldEqual, 3)
			So(report.Tally.GuaranteeViolations, ShouldEqual, 0)

			stats, err := svc.Stats(ctx)
			So(err, ShouldBeNil)
			So(stats.TotalPulls, ShouldEqual, 226)
		})

		Convey("An unknown banner is reported by the server", func() {
			_, err := RunRemote(ctx, Config{BaseURL: srv.URL, Sessions: 1, TenPulls: 1, BannerID: "nope"})
			So(errors.Is(err, ErrUnexpectedStatus), ShouldBeTrue)
		})
	})

	Convey("Given nothing listening", t, func() {
		_, err := RunRemote(context.Background(), Config{BaseURL: "http://127.0.0.1:1", Sessions: 1, TenPulls: 1, Timeout: time.Second})
		So(errors.Is(err, ErrUnhealthy), ShouldBeTrue)
	})
}
