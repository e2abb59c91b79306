package api_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/okian/gachasim/internal/adapters/http/api"
	service "github.com/okian/gachasim/internal/app"
	"github.com/okian/gachasim/internal/domain/model"
	"github.com/okian/gachasim/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAPI_WithService(t *testing.T) {
	Convey("Given the API over a running service with built-in banners", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		svc := service.New(service.WithRevealDelay(0), service.WithRNGSeed(11))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(ctx, mux)

		Convey("A ten-pull is charged once per idempotency key", func() {
			w := serve(mux, "POST", "/pull/ten", "", api.IdempotencyHeader, "retry-1")
			So(w.Code, ShouldEqual, http.StatusOK)
			var first types.PullResponse
			decode(w, &first)
			So(first.Replayed, ShouldBeFalse)

			w = serve(mux, "POST", "/pull/ten", "", api.IdempotencyHeader, "retry-1")
			var second types.PullResponse
			decode(w, &second)
			So(second.Replayed, ShouldBeTrue)
			So(second.Results, ShouldResemble, first.Results)

			var wallet model.CurrencyLedger
			decode(serve(mux, "GET", "/wallet", ""), &wallet)
			So(wallet.Crystals, ShouldEqual, model.DefaultCrystals-50)

			var stats model.Stats
			decode(serve(mux, "GET", "/stats", ""), &stats)
			So(stats.TotalPulls, ShouldEqual, 10)
		})

		Convey("Draining the wallet yields 402", func() {
			So(serve(mux, "PUT", "/wallet", `{"crystals":49,"tickets":0}`).Code, ShouldEqual, http.StatusOK)
			So(serve(mux, "POST", "/pull/ten", "").Code, ShouldEqual, http.StatusPaymentRequired)
			So(serve(mux, "POST", "/pull/single?ticket=true", "").Code, ShouldEqual, http.StatusPaymentRequired)
			So(serve(mux, "POST", "/pull/single", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("Export then import round-trips", func() {
			serve(mux, "POST", "/pull/ten", "")
			exported := serve(mux, "GET", "/export", "").Body.String()
			So(serve(mux, "POST", "/reset", "").Code, ShouldEqual, http.StatusNoContent)

			w := serve(mux, "POST", "/import", exported)
			So(w.Code, ShouldEqual, http.StatusOK)

			var stats model.Stats
			decode(serve(mux, "GET", "/stats", ""), &stats)
			So(stats.TotalPulls, ShouldEqual, 10)

			var history []model.HistoryEntry
			decode(serve(mux, "GET", "/history", ""), &history)
			So(len(history), ShouldEqual, 1)
		})
	})
}
