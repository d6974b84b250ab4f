package model_test

import (
	"testing"
	"time"

	"github.com/okian/soprofile/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestUserStale(t *testing.T) {
	Convey("Given a user cached at noon", t, func() {
		noon := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		u := model.User{ID: 1, UpdatedAt: noon}

		Convey("Then it is fresh within the TTL", func() {
			So(u.Stale(noon.Add(23*time.Hour), 24*time.Hour), ShouldBeFalse)
		})

		Convey("And it is stale once the TTL has elapsed", func() {
			So(u.Stale(noon.Add(24*time.Hour), 24*time.Hour), ShouldBeTrue)
			So(u.Stale(noon.Add(48*time.Hour), 24*time.Hour), ShouldBeTrue)
		})
	})
}

func TestUserBadges(t *testing.T) {
	Convey("Given a user with badge counts", t, func() {
		u := model.User{Gold: 1, Silver: 20, Bronze: 300}

		Convey("Then Badges groups them", func() {
			So(u.Badges(), ShouldResemble, model.Badges{Gold: 1, Silver: 20, Bronze: 300})
		})
	})
}
