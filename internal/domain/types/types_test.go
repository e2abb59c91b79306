package types_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/gachasim/internal/domain/model"
	types "github.com/okian/gachasim/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseTier(t *testing.T) {
	Convey("Given wire tier names", t, func() {
		cases := map[string]model.Tier{
			"":         model.TierNormal,
			"normal":   model.TierNormal,
			"rateup":   model.TierRateUp1,
			"featured": model.TierRateUp2,
			"rateup-1": model.TierRateUp1,
			"rateup-2": model.TierRateUp2,
			" RateUp ": model.TierRateUp1,
		}

		Convey("Then each maps to the engine tier", func() {
			for in, want := range cases {
				got, err := types.ParseTier(in)
				So(err, ShouldBeNil)
				So(got, ShouldEqual, want)
			}
		})

		Convey("Then unknown names are rejected", func() {
			_, err := types.ParseTier("legendary")
			So(err, ShouldNotBeNil)
		})

		Convey("Then formatting returns the wire names", func() {
			So(types.FormatTier(model.TierRateUp1), ShouldEqual, "rateup")
			So(types.FormatTier(model.TierRateUp2), ShouldEqual, "featured")
			So(types.FormatTier(model.TierNormal), ShouldEqual, "normal")
		})
	})
}

func TestBannerToModel(t *testing.T) {
	Convey("Given a banner document in the legacy shape", t, func() {
		doc := `{
			"_id": "b-1",
			"name": "Summer",
			"characters": [
				{"_id": "c1", "name": "Aoi", "rarity": 5, "rateUpStatus": "rateup"},
				{"characterId": "c2", "name": "Ren", "rarity": 4, "tier": "featured"},
				{"characterId": "c3", "name": "Bad", "rarity": 7},
				{"characterId": "c2", "name": "Ren again", "rarity": 4}
			]
		}`
		var b types.Banner
		So(json.Unmarshal([]byte(doc), &b), ShouldBeNil)

		Convey("When converted", func() {
			m, errs := b.ToModel()

			Convey("Then the legacy id is used", func() {
				So(m.ID, ShouldEqual, "b-1")
			})

			Convey("Then valid characters are mapped and duplicates dropped", func() {
				So(m.Characters, ShouldHaveLength, 2)
				So(m.Characters[0].Tier, ShouldEqual, model.TierRateUp1)
				So(m.Characters[1].Tier, ShouldEqual, model.TierRateUp2)
				So(m.Characters[1].Name, ShouldEqual, "Ren")
			})

			Convey("Then the invalid rarity is reported", func() {
				So(errs, ShouldHaveLength, 1)
				So(errs[0].Error(), ShouldContainSubstring, "invalid rarity")
			})

			Convey("Then converting back uses wire tier names", func() {
				w := types.FromModel(m)
				So(w.Characters[0].Tier, ShouldEqual, "rateup")
				So(w.Characters[1].Tier, ShouldEqual, "featured")
			})
		})
	})

	Convey("Given a character without any id", t, func() {
		_, err := types.Character{Name: "ghost", Rarity: 3}.ToModel()
		So(err, ShouldNotBeNil)
	})
}
