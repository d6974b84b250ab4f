package dataexplorer_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/soprofile/internal/adapters/dataexplorer"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

const interval = 10 * time.Millisecond

// fakeExplorer serves the submit and status endpoints. statuses is consumed
// one entry per poll; the last entry repeats.
type fakeExplorer struct {
	t        *testing.T
	submit   string
	statuses []string

	mu       sync.Mutex
	polls    atomic.Int64
	cookies  []string
	tagNames []string
}

func (f *fakeExplorer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /query/run/1/1629390/1986822", f.serveSubmit)
	mux.HandleFunc("POST /query/run/1/1631574/1989329", f.serveSubmit)
	mux.HandleFunc("GET /query/job/{id}", func(w http.ResponseWriter, r *http.Request) {
		n := int(f.polls.Add(1))
		f.mu.Lock()
		f.cookies = append(f.cookies, r.Header.Get("Cookie"))
		idx := n - 1
		if idx >= len(f.statuses) {
			idx = len(f.statuses) - 1
		}
		body := f.statuses[idx]
		f.mu.Unlock()
		if body == "500" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
	return mux
}

func (f *fakeExplorer) serveSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		f.t.Errorf("parse form: %v", err)
	}
	f.mu.Lock()
	f.cookies = append(f.cookies, r.Header.Get("Cookie"))
	f.tagNames = append(f.tagNames, r.PostForm.Get("tagName"))
	f.mu.Unlock()
	if f.submit == "502" {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(f.submit))
}

func newClient(srv *httptest.Server) *dataexplorer.Client {
	return dataexplorer.NewClient(
		dataexplorer.WithBaseURL(srv.URL),
		dataexplorer.WithCookie("session=abc123"),
		dataexplorer.WithPollInterval(interval),
		dataexplorer.WithHTTPClient(&http.Client{
			Timeout:   time.Second,
			Transport: &http.Transport{DisableKeepAlives: true},
		}),
	)
}

func rowsJSON(rows []dataexplorer.Row) string {
	b, _ := json.Marshal(rows)
	return string(b)
}

func TestAwaitCompletesAfterPolling(t *testing.T) {
	Convey("Given a job that runs for two polls and then returns one row", t, func() {
		fake := &fakeExplorer{
			t:      t,
			submit: `{"job_id":"abc"}`,
			statuses: []string{
				`{"running":true}`,
				`{"running":true}`,
				`{"running":false,"resultSets":[{"rows":[[{"id":7},42]]}]}`,
			},
		}
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()
		c := newClient(srv)
		ctx := context.Background()

		Convey("When the job is started and awaited", func() {
			job, err := c.Start(ctx, dataexplorer.TopUsersByTag.Spec, "javascript")
			So(err, ShouldBeNil)
			So(job.ID, ShouldEqual, "abc")
			So(job.FromCache, ShouldBeFalse)

			rows, ok, err := job.Await(ctx)

			Convey("Then it resolves with the rows after exactly three polls", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(rowsJSON(rows), ShouldEqual, `[[{"id":7},42]]`)
				So(job.Polls(), ShouldEqual, 3)
				So(fake.polls.Load(), ShouldEqual, 3)
			})

			Convey("Then the tag and cookie were sent", func() {
				fake.mu.Lock()
				defer fake.mu.Unlock()
				So(fake.tagNames, ShouldResemble, []string{"javascript"})
				for _, c := range fake.cookies {
					So(c, ShouldEqual, "session=abc123")
				}
			})
		})

		Convey("When the same job is fetched through the typed query", func() {
			users, ok, err := dataexplorer.Fetch(ctx, c, dataexplorer.TopUsersByTag, "javascript")

			Convey("Then the row is decoded into a user score", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(users, ShouldResemble, []dataexplorer.UserScore{{UserID: 7, Score: 42}})
			})
		})
	})
}

func TestAwaitCancellation(t *testing.T) {
	Convey("Given a job that never stops running", t, func() {
		fake := &fakeExplorer{t: t, submit: `{"job_id":17}`, statuses: []string{`{"running":true}`}}
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()
		c := newClient(srv)

		Convey("When the await context is cancelled after the first poll", func() {
			job, err := c.Start(context.Background(), dataexplorer.ScoreAmountsByTag.Spec, "go")
			So(err, ShouldBeNil)
			So(job.ID, ShouldEqual, "17")

			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				for fake.polls.Load() < 1 {
					time.Sleep(time.Millisecond)
				}
				cancel()
			}()
			rows, ok, err := job.Await(ctx)
			<-job.Done()
			polled := fake.polls.Load()
			time.Sleep(5 * interval)

			Convey("Then it resolves to the cancelled outcome", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
				So(rows, ShouldBeNil)
			})

			Convey("Then no poll is issued after cancellation", func() {
				So(fake.polls.Load(), ShouldEqual, polled)
				So(int64(job.Polls()), ShouldEqual, polled)
			})
		})

		Convey("When Cancel is called before the first tick", func() {
			job, err := c.Start(context.Background(), dataexplorer.ScoreAmountsByTag.Spec, "go")
			So(err, ShouldBeNil)
			job.Cancel()
			job.Cancel()
			rows, ok, err := job.Await(context.Background())
			time.Sleep(3 * interval)

			Convey("Then nothing is polled and the result is cancelled", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
				So(rows, ShouldBeNil)
				So(job.Polls(), ShouldEqual, 0)
				So(fake.polls.Load(), ShouldEqual, 0)
			})
		})
	})
}

func TestFromCacheShortCircuit(t *testing.T) {
	Convey("Given a submission answered from the remote cache", t, func() {
		fake := &fakeExplorer{
			t:        t,
			submit:   `{"fromCache":true,"resultSets":[{"rows":[[900,3],[12,40]]}]}`,
			statuses: []string{`{"running":true}`},
		}
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()
		c := newClient(srv)
		ctx := context.Background()

		Convey("When the job is started", func() {
			job, err := c.Start(ctx, dataexplorer.ScoreAmountsByTag.Spec, "rust")
			So(err, ShouldBeNil)

			Convey("Then it is already resolved with the inline rows and never polls", func() {
				So(job.FromCache, ShouldBeTrue)
				resolved := false
				select {
				case <-job.Done():
					resolved = true
				default:
				}
				So(resolved, ShouldBeTrue)
				rows, ok, err := job.Await(ctx)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(rowsJSON(rows), ShouldEqual, `[[900,3],[12,40]]`)
				time.Sleep(3 * interval)
				So(job.Polls(), ShouldEqual, 0)
				So(fake.polls.Load(), ShouldEqual, 0)
			})
		})

		Convey("When it is fetched through the typed query", func() {
			counts, ok, err := dataexplorer.Fetch(ctx, c, dataexplorer.ScoreAmountsByTag, "rust")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(counts, ShouldResemble, []dataexplorer.ScoreCount{{Score: 900, Amount: 3}, {Score: 12, Amount: 40}})
		})
	})
}

func TestZeroRows(t *testing.T) {
	Convey("Given a job that finishes without rows", t, func() {
		fake := &fakeExplorer{
			t:        t,
			submit:   `{"job_id":"empty"}`,
			statuses: []string{`{"running":false,"resultSets":[{"rows":[]}]}`},
		}
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		Convey("Then the result is empty but successful", func() {
			rows, ok, err := dataexplorer.Fetch(context.Background(), newClient(srv), dataexplorer.TopUsersByTag, "lisp")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(rows, ShouldNotBeNil)
			So(rows, ShouldBeEmpty)
		})
	})
}

func TestSubmissionErrors(t *testing.T) {
	cases := []struct {
		name   string
		submit string
	}{
		{"a non-2xx answer", "502"},
		{"malformed JSON", `{"job_id":`},
		{"a missing job identifier", `{"status":"queued"}`},
	}

	for _, tc := range cases {
		Convey("Given a submission endpoint returning "+tc.name, t, func() {
			fake := &fakeExplorer{t: t, submit: tc.submit, statuses: []string{`{"running":true}`}}
			srv := httptest.NewServer(fake.handler())
			defer srv.Close()

			Convey("Then Start fails with a submission error", func() {
				job, err := newClient(srv).Start(context.Background(), dataexplorer.TopUsersByTag.Spec, "go")
				So(job, ShouldBeNil)
				So(errors.Is(err, dataexplorer.ErrSubmission), ShouldBeTrue)
				So(errors.Is(err, dataexplorer.ErrPoll), ShouldBeFalse)

				var se *dataexplorer.SubmissionError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Tag, ShouldEqual, "go")
				So(fake.polls.Load(), ShouldEqual, 0)
			})
		})
	}

	Convey("Given an unreachable service", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		c := newClient(srv)
		srv.Close()

		Convey("Then Start fails with a submission error", func() {
			_, err := c.Start(context.Background(), dataexplorer.TopUsersByTag.Spec, "go")
			So(errors.Is(err, dataexplorer.ErrSubmission), ShouldBeTrue)
		})
	})
}

func TestPollErrors(t *testing.T) {
	cases := []struct {
		name     string
		statuses []string
		polls    int64
	}{
		{"a server error on the second poll", []string{`{"running":true}`, "500"}, 2},
		{"malformed JSON", []string{`{"running":`}, 1},
		{"a finished job without a result set", []string{`{"running":false}`}, 1},
	}

	for _, tc := range cases {
		Convey("Given a status endpoint returning "+tc.name, t, func() {
			fake := &fakeExplorer{t: t, submit: `{"job_id":"bad"}`, statuses: tc.statuses}
			srv := httptest.NewServer(fake.handler())
			defer srv.Close()

			Convey("Then waiting aborts with a poll error and no retry", func() {
				job, err := newClient(srv).Start(context.Background(), dataexplorer.TopUsersByTag.Spec, "go")
				So(err, ShouldBeNil)
				rows, ok, err := job.Await(context.Background())
				So(rows, ShouldBeNil)
				So(ok, ShouldBeFalse)
				So(errors.Is(err, dataexplorer.ErrPoll), ShouldBeTrue)

				var pe *dataexplorer.PollError
				So(errors.As(err, &pe), ShouldBeTrue)
				So(pe.JobID, ShouldEqual, "bad")

				time.Sleep(3 * interval)
				So(fake.polls.Load(), ShouldEqual, tc.polls)
			})
		})
	}

	Convey("Given a finished job with rows of the wrong shape", t, func() {
		fake := &fakeExplorer{
			t:        t,
			submit:   `{"job_id":"shape"}`,
			statuses: []string{`{"running":false,"resultSets":[{"rows":[["x"]]}]}`},
		}
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		Convey("Then Fetch reports a poll error instead of partial data", func() {
			rows, ok, err := dataexplorer.Fetch(context.Background(), newClient(srv), dataexplorer.ScoreAmountsByTag, "go")
			So(rows, ShouldBeNil)
			So(ok, ShouldBeFalse)
			So(errors.Is(err, dataexplorer.ErrPoll), ShouldBeTrue)
		})
	})
}

func TestRowDecoders(t *testing.T) {
	Convey("Given raw rows", t, func() {
		row := func(s string) dataexplorer.Row {
			var r dataexplorer.Row
			So(json.Unmarshal([]byte(s), &r), ShouldBeNil)
			return r
		}

		Convey("Then integral floats are accepted", func() {
			v, err := dataexplorer.ScoreAmountsByTag.Decode(row(`[120.0, 7]`))
			So(err, ShouldBeNil)
			So(v, ShouldResemble, dataexplorer.ScoreCount{Score: 120, Amount: 7})
		})

		Convey("Then fractional values are rejected", func() {
			_, err := dataexplorer.ScoreAmountsByTag.Decode(row(`[1.5, 7]`))
			So(err, ShouldNotBeNil)
		})

		Convey("Then a user cell without an id is rejected", func() {
			_, err := dataexplorer.TopUsersByTag.Decode(row(`[{"name":"x"}, 7]`))
			So(err, ShouldNotBeNil)
		})
	})
}
