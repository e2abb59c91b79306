package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given an initialized logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithOutput(&buf)), ShouldBeNil)
		defer func() { So(Sync(), ShouldBeNil) }()

		ctx := context.Background()

		Convey("When logging with fields", func() {
			Get().Info(ctx, "pull committed",
				String("banner", "summer"),
				Int("results", 10),
				Bool("replayed", false),
				Duration("took", 3*time.Millisecond),
				Error(errors.New("boom")),
			)

			Convey("Then the line carries message, fields and source", func() {
				line := buf.String()
				So(line, ShouldContainSubstring, "pull committed")
				So(line, ShouldContainSubstring, "banner=summer")
				So(line, ShouldContainSubstring, "results=10")
				So(line, ShouldContainSubstring, "error=boom")
				So(line, ShouldContainSubstring, "took_ms=3")
				So(line, ShouldContainSubstring, "logger_test.go:")
			})
		})

		Convey("When using a named logger", func() {
			Named("session").Warn(ctx, "rejected", String("reason", "funds"))

			Convey("Then lines carry the component", func() {
				So(buf.String(), ShouldContainSubstring, "component=session")
				So(buf.String(), ShouldContainSubstring, "reason=funds")
			})
		})

		Convey("When nesting names", func() {
			Named("app").Named("writer").Info(ctx, "flushed")

			Convey("Then components are joined with dots", func() {
				So(buf.String(), ShouldContainSubstring, "component=app.writer")
			})
		})

		Convey("When the level is raised", func() {
			So(SetLevelString("warn"), ShouldBeNil)
			Get().Info(ctx, "hidden")
			Get().Error(ctx, "shown")

			Convey("Then lower levels are filtered", func() {
				So(buf.String(), ShouldNotContainSubstring, "hidden")
				So(buf.String(), ShouldContainSubstring, "shown")
			})
		})

		Convey("When an unknown level is given", func() {
			So(SetLevelString("loud"), ShouldNotBeNil)
		})
	})

	Convey("Given JSON output", t, func() {
		var buf bytes.Buffer
		So(Init(WithOutput(&buf), WithJSON(true), WithLevel(slog.LevelDebug)), ShouldBeNil)
		Get().Debug(context.Background(), "debug line", Uint64("seq", 7))

		Convey("Then lines are JSON objects", func() {
			So(strings.HasPrefix(buf.String(), "{"), ShouldBeTrue)
			So(buf.String(), ShouldContainSubstring, `"seq":7`)
		})
	})
}

func TestLoggerFallbacks(t *testing.T) {
	Convey("Given the discard logger", t, func() {
		nop := Nop()

		Convey("Then logging is safe", func() {
			So(func() { nop.Named("x").Info(context.Background(), "ignored") }, ShouldNotPanic)
		})

		Convey("Then GetOr prefers the global logger once initialized", func() {
			So(Init(WithOutput(&bytes.Buffer{})), ShouldBeNil)
			So(GetOr(nop), ShouldEqual, Get())
		})
	})
}
