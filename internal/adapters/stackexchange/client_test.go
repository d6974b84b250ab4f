package stackexchange_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/soprofile/internal/adapters/stackexchange"
	. "github.com/smartystreets/goconvey/convey"
)

const userBody = `{"items":[{"user_id":22656,"display_name":"Jon &amp; Skeet","reputation":1456789,
"badge_counts":{"gold":877,"silver":9245,"bronze":9532},"location":"Reading, United Kingdom",
"website_url":"https://codeblog.jonskeet.uk","profile_image":"https://example.com/a.png"}],"has_more":false}`

func TestUser(t *testing.T) {
	Convey("Given a fake Stack Exchange API", t, func() {
		var gotPath, gotQuery string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
			switch {
			case strings.HasSuffix(r.URL.Path, "/22656"):
				_, _ = w.Write([]byte(userBody))
			case strings.HasSuffix(r.URL.Path, "/1"):
				_, _ = w.Write([]byte(`{"items":[]}`))
			default:
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error_id":502,"error_name":"throttle_violation","error_message":"too many requests"}`))
			}
		}))
		defer srv.Close()

		c := stackexchange.NewClient(
			stackexchange.WithBaseURL(srv.URL+"/2.3/"),
			stackexchange.WithSite("stackoverflow"),
			stackexchange.WithKey("k3y"),
		)
		ctx := context.Background()

		Convey("When a known user is fetched", func() {
			u, err := c.User(ctx, 22656)

			Convey("Then the profile is mapped and unescaped", func() {
				So(err, ShouldBeNil)
				So(gotPath, ShouldEqual, "/2.3/users/22656")
				So(gotQuery, ShouldContainSubstring, "site=stackoverflow")
				So(gotQuery, ShouldContainSubstring, "key=k3y")
				So(u.ID, ShouldEqual, 22656)
				So(u.Username, ShouldEqual, "Jon & Skeet")
				So(u.Reputation, ShouldEqual, 1456789)
				So(u.Gold, ShouldEqual, 877)
				So(u.Silver, ShouldEqual, 9245)
				So(u.Bronze, ShouldEqual, 9532)
				So(u.Website, ShouldEqual, "https://codeblog.jonskeet.uk")
				So(u.AvatarLink, ShouldEqual, "https://example.com/a.png")
			})
		})

		Convey("When an unknown user is fetched", func() {
			_, err := c.User(ctx, 1)

			Convey("Then ErrUserNotFound is returned", func() {
				So(errors.Is(err, stackexchange.ErrUserNotFound), ShouldBeTrue)
			})
		})

		Convey("When the API answers with an error object", func() {
			_, err := c.User(ctx, 99)

			Convey("Then an APIError carrying the error id is returned", func() {
				So(errors.Is(err, stackexchange.ErrUpstream), ShouldBeTrue)
				var apiErr *stackexchange.APIError
				So(errors.As(err, &apiErr), ShouldBeTrue)
				So(apiErr.ID, ShouldEqual, 502)
				So(apiErr.Error(), ShouldContainSubstring, "too many requests")
			})
		})
	})
}

func TestAvatar(t *testing.T) {
	Convey("Given an image server", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/typed.png":
				w.Header().Set("Content-Type", "image/jpeg")
				_, _ = w.Write([]byte("abc"))
			case "/sniffed":
				w.Header().Set("Content-Type", "application/octet-stream")
				_, _ = w.Write([]byte("GIF89a......"))
			default:
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()
		c := stackexchange.NewClient()
		ctx := context.Background()

		Convey("Then the declared image type is used for the data URI", func() {
			uri, err := c.Avatar(ctx, srv.URL+"/typed.png")
			So(err, ShouldBeNil)
			So(uri, ShouldEqual, "data:image/jpeg;base64,YWJj")
		})

		Convey("Then an undeclared type is sniffed", func() {
			uri, err := c.Avatar(ctx, srv.URL+"/sniffed")
			So(err, ShouldBeNil)
			So(uri, ShouldStartWith, "data:image/gif;base64,")
		})

		Convey("Then a missing image is an upstream error", func() {
			_, err := c.Avatar(ctx, srv.URL+"/missing")
			So(errors.Is(err, stackexchange.ErrUpstream), ShouldBeTrue)
		})
	})
}
