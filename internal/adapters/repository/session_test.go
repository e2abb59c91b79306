package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/gachasim/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, error) { return "", errors.New("disk gone") }
func (brokenStore) SetMany(context.Context, map[string]string) error {
	return errors.New("disk gone")
}
func (brokenStore) Close() error { return nil }

func sampleSnapshot() model.Snapshot {
	results := []model.PullResult{
		{CharacterID: "a", Name: "A", Rarity: model.Rarity5, Tier: model.TierRateUp1, IsRateUp: true},
		{CharacterID: "b", Name: "B", Rarity: model.Rarity3, Tier: model.TierNormal},
	}
	stats := model.NewStats()
	stats.TotalPulls = 2
	stats.RarityCounts[model.Rarity5] = 1
	stats.RarityCounts[model.Rarity3] = 1
	stats.RateUpCount = 1

	return model.Snapshot{
		CurrencyLedger: model.CurrencyLedger{Crystals: 990, Tickets: 3},
		Levels:         map[string]int{"a": 1, "b": 1},
		Stats:          stats,
		History: []model.HistoryEntry{{
			Timestamp:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
			BannerName:   "Spring",
			Results:      results,
			Cost:         10,
			CurrencyType: model.CurrencyCrystals,
		}},
		SelectedBanner: "spring",
	}
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a session store over memory", t, func() {
		kv := NewMemoryStore()
		ss := NewSessionStore(kv)

		convey.Convey("An empty store loads defaults without fallbacks", func() {
			snap, report := ss.Load(ctx)
			convey.So(report.Unavailable, convey.ShouldBeFalse)
			convey.So(report.Fallbacks, convey.ShouldBeEmpty)
			convey.So(snap.Crystals, convey.ShouldEqual, model.DefaultCrystals)
			convey.So(snap.Tickets, convey.ShouldEqual, model.DefaultTickets)
			convey.So(snap.History, convey.ShouldNotBeNil)
			convey.So(snap.Levels, convey.ShouldNotBeNil)
		})

		convey.Convey("Save then Load round-trips the snapshot", func() {
			in := sampleSnapshot()
			convey.So(ss.Save(ctx, in), convey.ShouldBeNil)

			out, report := ss.Load(ctx)
			convey.So(report.Fallbacks, convey.ShouldBeEmpty)
			convey.So(out.CurrencyLedger, convey.ShouldResemble, in.CurrencyLedger)
			convey.So(out.Levels, convey.ShouldResemble, in.Levels)
			convey.So(out.Stats.Equal(in.Stats), convey.ShouldBeTrue)
			convey.So(out.SelectedBanner, convey.ShouldEqual, "spring")
			convey.So(len(out.History), convey.ShouldEqual, 1)
			convey.So(out.History[0].Timestamp.Equal(in.History[0].Timestamp), convey.ShouldBeTrue)
			convey.So(out.History[0].Results, convey.ShouldResemble, in.History[0].Results)
		})

		convey.Convey("Raw values use the documented encodings", func() {
			convey.So(ss.Save(ctx, sampleSnapshot()), convey.ShouldBeNil)
			v, _ := kv.Get(ctx, KeyCrystals)
			convey.So(v, convey.ShouldEqual, "990")
			v, _ = kv.Get(ctx, KeySelectedBanner)
			convey.So(v, convey.ShouldEqual, "spring")
			v, _ = kv.Get(ctx, KeyLevels)
			convey.So(v, convey.ShouldEqual, `{"a":1,"b":1}`)
		})

		convey.Convey("Nil history is stored as an empty array", func() {
			snap := sampleSnapshot()
			snap.History = nil
			convey.So(ss.Save(ctx, snap), convey.ShouldBeNil)
			v, _ := kv.Get(ctx, KeyHistory)
			convey.So(v, convey.ShouldEqual, "[]")
		})

		convey.Convey("A corrupt key falls back alone", func() {
			convey.So(ss.Save(ctx, sampleSnapshot()), convey.ShouldBeNil)
			convey.So(kv.SetMany(ctx, map[string]string{
				KeyHistory:  "{not json",
				KeyCrystals: "-4",
			}), convey.ShouldBeNil)

			snap, report := ss.Load(ctx)
			convey.So(report.Fallbacks, convey.ShouldResemble, []string{KeyCrystals, KeyHistory})
			convey.So(snap.Crystals, convey.ShouldEqual, model.DefaultCrystals)
			convey.So(snap.History, convey.ShouldBeEmpty)
			convey.So(snap.Tickets, convey.ShouldEqual, 3)
			convey.So(snap.Levels, convey.ShouldResemble, map[string]int{"a": 1, "b": 1})
		})
	})

	convey.Convey("Given custom defaults", t, func() {
		def := model.DefaultSnapshot()
		def.Crystals = 50
		ss := NewSessionStore(NewMemoryStore(), WithDefaults(def))

		convey.Convey("Missing keys take them", func() {
			snap, _ := ss.Load(ctx)
			convey.So(snap.Crystals, convey.ShouldEqual, 50)
		})
	})

	convey.Convey("Given an unavailable store", t, func() {
		ss := NewSessionStore(brokenStore{})

		convey.Convey("Load reports it and returns defaults", func() {
			snap, report := ss.Load(ctx)
			convey.So(report.Unavailable, convey.ShouldBeTrue)
			convey.So(snap.Crystals, convey.ShouldEqual, model.DefaultCrystals)
		})

		convey.Convey("Save surfaces the error", func() {
			convey.So(ss.Save(ctx, sampleSnapshot()), convey.ShouldNotBeNil)
		})
	})
}
