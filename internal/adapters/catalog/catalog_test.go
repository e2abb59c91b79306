package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gachasim/internal/domain/model"
)

const bannerJSON = `[
	{
		"_id": "summer",
		"name": "Summer",
		"characters": [
			{"_id": "a", "name": "A", "rarity": 5, "rateUpStatus": "featured"},
			{"characterId": "b", "name": "B", "rarity": 4, "tier": "rateup"},
			{"characterId": "b", "name": "B again", "rarity": 3},
			{"characterId": "c", "name": "C", "rarity": 7},
			{"characterId": "d", "name": "D", "rarity": 3, "tier": "rateup-2"}
		]
	},
	{"id": "winter", "name": "Winter", "characters": []}
]`

const bannerYAML = `
banners:
  - id: spring
    name: Spring
    characters:
      - characterId: x
        name: X
        rarity: 5
        tier: normal
`

func TestDecode(t *testing.T) {
	Convey("Decode accepts lists and wrappers in JSON and YAML", t, func() {
		list, err := Decode([]byte(bannerJSON))
		So(err, ShouldBeNil)
		So(len(list), ShouldEqual, 2)

		wrapped, err := Decode([]byte(`{"banners":[{"id":"x","name":"X","characters":[]}]}`))
		So(err, ShouldBeNil)
		So(len(wrapped), ShouldEqual, 1)

		y, err := Decode([]byte(bannerYAML))
		So(err, ShouldBeNil)
		So(len(y), ShouldEqual, 1)
		So(y[0].ID, ShouldEqual, "spring")

		bare, err := Decode([]byte("- id: one\n  name: One\n"))
		So(err, ShouldBeNil)
		So(bare[0].ID, ShouldEqual, "one")

		empty, err := Decode([]byte("   "))
		So(err, ShouldBeNil)
		So(empty, ShouldBeEmpty)

		_, err = Decode([]byte("[{"))
		So(errors.Is(err, ErrDecode), ShouldBeTrue)
	})
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()

	Convey("Given a catalog loaded from JSON", t, func() {
		c := New()
		So(c.LoadBytes(ctx, []byte(bannerJSON)), ShouldBeNil)

		Convey("Banners keep load order", func() {
			So(c.Len(), ShouldEqual, 2)
			first, ok := c.First()
			So(ok, ShouldBeTrue)
			So(first.ID, ShouldEqual, "summer")
		})

		Convey("Legacy fields map, bad characters are skipped, and duplicates dropped", func() {
			b, err := c.Get("summer")
			So(err, ShouldBeNil)
			So(len(b.Characters), ShouldEqual, 3)
			So(b.Characters[0].CharacterID, ShouldEqual, "a")
			So(b.Characters[0].Tier, ShouldEqual, model.TierRateUp2)
			So(b.Characters[1].Tier, ShouldEqual, model.TierRateUp1)
			So(b.Characters[1].Name, ShouldEqual, "B")
			So(b.Characters[2].Tier, ShouldEqual, model.TierRateUp2)
		})

		Convey("Unknown ids are reported", func() {
			_, err := c.Get("autumn")
			So(errors.Is(err, ErrBannerNotFound), ShouldBeTrue)
		})

		Convey("Replace drops banners without id and repeats", func() {
			n := c.Replace(ctx, []model.Banner{{ID: "x"}, {ID: ""}, {ID: "x", Name: "dup"}})
			So(n, ShouldEqual, 1)
			_, err := c.Get("summer")
			So(errors.Is(err, ErrBannerNotFound), ShouldBeTrue)
		})
	})

	Convey("Given a banner file", t, func() {
		path := filepath.Join(t.TempDir(), "banners.yaml")
		So(os.WriteFile(path, []byte(bannerYAML), 0o600), ShouldBeNil)

		c := New()
		So(c.LoadFile(ctx, path), ShouldBeNil)
		So(c.Len(), ShouldEqual, 1)

		Convey("Missing files fail", func() {
			So(c.LoadFile(ctx, filepath.Join(t.TempDir(), "nope.yaml")), ShouldNotBeNil)
		})
	})

	Convey("An empty document leaves an empty catalog", t, func() {
		c := New()
		So(errors.Is(c.LoadBytes(ctx, []byte("[]")), ErrEmptyCatalog), ShouldBeTrue)
		_, ok := c.First()
		So(ok, ShouldBeFalse)
	})

	Convey("The built-in banners load", t, func() {
		c := New()
		So(c.LoadDefault(ctx), ShouldBeNil)
		b, ok := c.First()
		So(ok, ShouldBeTrue)
		So(b.CountByTier(model.Rarity5, model.TierRateUp2), ShouldEqual, 1)
		So(b.CountByTier(model.Rarity4, model.TierRateUp1), ShouldEqual, 2)
	})
}

func TestFetch(t *testing.T) {
	ctx := context.Background()

	Convey("Given a banner backend", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/banners" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(bannerJSON))
		}))
		defer srv.Close()

		Convey("Fetch installs its banners", func() {
			c := New(WithHTTPClient(srv.Client()))
			So(c.Fetch(ctx, srv.URL+"/"), ShouldBeNil)
			So(c.Len(), ShouldEqual, 2)
		})
	})

	Convey("Given a failing backend", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		Convey("Fetch reports the status", func() {
			c := New()
			err := c.Fetch(ctx, srv.URL)
			So(errors.Is(err, ErrFetch), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "502")
		})
	})
}
