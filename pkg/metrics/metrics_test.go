package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created with the service namespace", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "soprofile")
				So(manager.enabled, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_ns"),
				WithSubsystem("cards"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithMetricsEnabled(false),
				WithRefreshInterval(5*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options should be applied", func() {
				So(manager.namespace, ShouldEqual, "test_ns")
				So(manager.subsystem, ShouldEqual, "cards")
				So(manager.histogramBuckets, ShouldResemble, []float64{1, 10, 100})
				So(manager.enabled, ShouldBeFalse)
				So(manager.refreshInterval, ShouldEqual, 5*time.Second)
			})

			Convey("And metric names should carry namespace and subsystem", func() {
				manager.profileRenders.WithLabelValues("profile", "dark").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_ns_cards_profile_renders_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When empty option values are given", func() {
			manager := NewManager(
				WithNamespace(""),
				WithHistogramBuckets(nil),
				WithRefreshInterval(0),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "soprofile")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
				So(manager.refreshInterval, ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording query job metrics", func() {
			before := testutil.ToFloat64(globalManager.jobPolls.WithLabelValues("top_users_by_tag"))
			RecordJobSubmitted("top_users_by_tag")
			RecordJobPoll("top_users_by_tag")
			RecordJobPoll("top_users_by_tag")
			RecordJobFromCache("score_amounts_by_tag")
			RecordJobFailure("top_users_by_tag", "poll")
			RecordJobCancelled("top_users_by_tag")
			RecordJobDuration("top_users_by_tag", 12)

			Convey("Then poll counts increase by the number of polls", func() {
				after := testutil.ToFloat64(globalManager.jobPolls.WithLabelValues("top_users_by_tag"))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When recording profile and league metrics", func() {
			So(func() {
				RecordProfileRender("profile", "default")
				RecordProfileRenderError("invalid_theme")
				RecordUserCacheHit()
				RecordUserCacheMiss()
				RecordUpstreamError("stackexchange")
				RecordLeagueComputation("completed")
				UpdateLeagueRunning(2)
				UpdateQueueSize(3)
				UpdateQueueCapacity(100)
				RecordQueueEnqueueError("queue_full")
				UpdateWorkerCount(2)
				RecordWorkerProcessingLatency(40)
			}, ShouldNotPanic)

			Convey("Then gauges hold the last value", func() {
				So(testutil.ToFloat64(globalManager.leagueRunning), ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.leagueQueueCap), ShouldEqual, 100)
			})
		})

		Convey("When recording HTTP and system metrics", func() {
			So(func() {
				RecordHTTPRequest("profile", "GET", "200")
				RecordHTTPRequestDuration("profile", "GET", "200", 5.0)
				RecordHTTPError("league", "POST", "rate_limit")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.4)
			}, ShouldNotPanic)
		})

		Convey("When gathering the custom registry", func() {
			RecordHTTPRequest("analytics", "GET", "200")
			families, err := GetRegistry().Gather()

			Convey("Then only service metrics are exposed", func() {
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				for _, f := range families {
					So(strings.HasPrefix(f.GetName(), "soprofile_"), ShouldBeTrue)
				}
			})
		})
	})
}
