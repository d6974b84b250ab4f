package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When it is initialized with defaults", func() {
			So(Init(), ShouldBeNil)

			Convey("Then Get returns a usable logger", func() {
				So(Get(), ShouldNotBeNil)
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When an unknown format is requested", func() {
			err := InitWriter(&bytes.Buffer{}, "xml")

			Convey("Then initialization fails", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "unknown log format")
			})
		})

		Convey("When the writer is nil", func() {
			So(InitWriter(nil, "text"), ShouldNotBeNil)
		})
	})
}

func TestLoggerJSONRecords(t *testing.T) {
	Convey("Given a JSON logger writing into a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWriter(&buf, "json"), ShouldBeNil)
		ctx := context.Background()

		Convey("When a named logger with fields logs a message", func() {
			Named("poller").With(String("tag", "go")).Info(ctx, "job started",
				Int("polls", 3),
				Int64("user_id", 7),
				Bool("from_cache", false),
				Duration("elapsed", 2*time.Second),
				Error(errors.New("boom")),
			)

			Convey("Then the record carries component, fields and source", func() {
				var rec map[string]any
				So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
				So(rec["msg"], ShouldEqual, "job started")
				So(rec["component"], ShouldEqual, "poller")
				So(rec["tag"], ShouldEqual, "go")
				So(rec["polls"], ShouldEqual, 3)
				So(rec["from_cache"], ShouldEqual, false)
				So(rec["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When the level is raised to warn", func() {
			So(SetLevelString("WARN"), ShouldBeNil)
			Get().Info(ctx, "hidden")
			Get().Warn(ctx, "shown")

			Convey("Then only the warning is written", func() {
				out := buf.String()
				So(strings.Contains(out, "hidden"), ShouldBeFalse)
				So(out, ShouldContainSubstring, "shown")
			})
		})

		Convey("When an invalid level is given", func() {
			So(SetLevelString("loud"), ShouldNotBeNil)
		})
	})
}

func TestLoggerDiscard(t *testing.T) {
	Convey("Given a discard logger", t, func() {
		l := Discard()

		Convey("Then logging does not panic", func() {
			So(func() {
				l.Named("x").With(String("k", "v")).Error(context.Background(), "dropped")
			}, ShouldNotPanic)
		})
	})
}
