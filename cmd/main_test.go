package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/soprofile/internal/adapters/repository"
	"github.com/okian/soprofile/internal/config"
	"github.com/okian/soprofile/pkg/logger"
	"github.com/okian/soprofile/pkg/metrics"
)

func TestWiring(t *testing.T) {
	convey.Convey("Given the wired application", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.DBPath = filepath.Join(t.TempDir(), "soprofile.db")
		cfg.LeagueCron = ""
		cfg.StackExchangeURL = "http://127.0.0.1:1"
		cfg.DataExplorerURL = "http://127.0.0.1:1"

		store, err := repository.Open(ctx, cfg.DBPath)
		convey.So(err, convey.ShouldBeNil)
		defer func() { _ = store.Close() }()

		svc, err := newService(cfg, store, logger.Discard())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		router := newRouter(ctx, cfg, svc, logger.Discard())
		get := func(target string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, http.NoBody))
			return w
		}

		convey.Convey("Then the docs are served", func() {
			convey.So(get("/openapi.yaml").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/api-docs").Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then stats report a started service", func() {
			w := get("/stats")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, `"started":true`)
		})

		convey.Convey("Then an invalid card request is drawn as an error", func() {
			w := get("/profile/abc")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Cache-Control"), convey.ShouldEqual, "public, max-age=600")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "User not found")
		})

		convey.Convey("Then an unreachable upstream is drawn as an error", func() {
			w := get("/profile/22656")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "Error: ")
		})

		convey.Convey("Then seeded tags are stored", func() {
			tags, err := store.PopularTags(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(tags), convey.ShouldEqual, len(cfg.LeagueTags))
		})

		convey.Convey("Then league reads validate their input", func() {
			convey.So(get("/league/go?limit=0").Code, convey.ShouldEqual, http.StatusBadRequest)
			convey.So(get("/league/go").Code, convey.ShouldEqual, http.StatusOK)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the metrics updaters", t, func() {
		convey.Convey("Then updating system metrics does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(metrics.GetRegistry(), convey.ShouldNotBeNil)
		})

		convey.Convey("Then the updaters stop with their context", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(ctx)
				close(done)
			}()
			<-done
			convey.So(true, convey.ShouldBeTrue)
		})
	})
}
