package app_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/typeshield/typeshield/internal/adapters/repository"
	"github.com/typeshield/typeshield/internal/app"
	"github.com/typeshield/typeshield/internal/auth"
	"github.com/typeshield/typeshield/internal/domain/model"
	"github.com/typeshield/typeshield/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func enrollmentAttempt() model.Attempt {
	return model.Attempt{
		DwellTimes:  []float64{100, 100, 100},
		FlightTimes: []float64{50, 50},
		TotalTime:   300,
		ErrorCount:  0,
		DeviceType:  "fine",
	}
}

func newStartedService(t *testing.T, store repository.Store) *app.Service {
	t.Helper()
	svc := app.New(
		app.WithStore(store),
		app.WithThreshold(75),
		app.WithAuditQueueSize(64),
		app.WithAuditWriterCount(1),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	return svc
}

func TestService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service", t, func() {
		store := repository.NewMemoryStore()
		svc := newStartedService(t, store)

		Convey("When a user registers", func() {
			creds, err := svc.Register(ctx, "alice", "hunter2-but-long", enrollmentAttempt(), uuid.NewString())
			So(err, ShouldBeNil)
			So(creds.Token, ShouldNotBeEmpty)
			So(creds.Session.Username, ShouldEqual, "alice")
			So(creds.Session.LastScore, ShouldEqual, 100.0)

			Convey("And the template is enrolled", func() {
				tmpl, err := store.GetTemplate(ctx, creds.Session.UserID)
				So(err, ShouldBeNil)
				So(tmpl.DwellTimes, ShouldResemble, []float64{100, 100, 100})
			})

			Convey("And the username cannot be taken again", func() {
				_, err := svc.Register(ctx, "alice", "another-password", enrollmentAttempt(), uuid.NewString())
				So(err, ShouldEqual, repository.ErrDuplicateUser)
			})

			Convey("And a matching login succeeds", func() {
				result, err := svc.Login(ctx, "alice", "hunter2-but-long", enrollmentAttempt(), uuid.NewString())
				So(err, ShouldBeNil)
				So(result.Decision.IsMatch, ShouldBeTrue)
				So(result.Decision.Score, ShouldEqual, 100.0)
				So(result.Decision.Reasons, ShouldBeEmpty)
				So(result.Credentials.Token, ShouldNotBeEmpty)
			})

			Convey("And a wrong password fails without behavioural detail", func() {
				_, err := svc.Login(ctx, "alice", "wrong", enrollmentAttempt(), uuid.NewString())
				So(err, ShouldEqual, auth.ErrBadCredentials)
			})

			Convey("And a drifting attempt is rejected with reasons", func() {
				att := enrollmentAttempt()
				att.DwellTimes = []float64{50, 50, 50}
				att.FlightTimes = []float64{25, 25}
				att.TotalTime = 290

				result, err := svc.Login(ctx, "alice", "hunter2-but-long", att, uuid.NewString())
				So(err, ShouldBeNil)
				So(result.Decision.IsMatch, ShouldBeFalse)
				So(result.Decision.Reasons, ShouldNotBeEmpty)
				So(result.Credentials.Token, ShouldBeEmpty)
			})

			Convey("And a replayed capture payload is refused", func() {
				attemptID := uuid.NewString()
				_, err := svc.Login(ctx, "alice", "hunter2-but-long", enrollmentAttempt(), attemptID)
				So(err, ShouldBeNil)

				_, err = svc.Login(ctx, "alice", "hunter2-but-long", enrollmentAttempt(), attemptID)
				So(err, ShouldEqual, app.ErrReplayedAttempt)
			})
		})

		Convey("When an unknown user logs in", func() {
			_, err := svc.Login(ctx, "nobody", "whatever-password", enrollmentAttempt(), uuid.NewString())

			Convey("Then the error is indistinguishable from a bad password", func() {
				So(err, ShouldEqual, auth.ErrBadCredentials)
			})
		})

		Convey("When inputs are empty", func() {
			_, err := svc.Register(ctx, " ", "pw", enrollmentAttempt(), uuid.NewString())
			So(err, ShouldEqual, app.ErrInvalidInput)
			_, err = svc.Login(ctx, "alice", "", enrollmentAttempt(), uuid.NewString())
			So(err, ShouldEqual, app.ErrInvalidInput)
		})

		Reset(func() {
			svc.Stop()
		})
	})
}

func TestService_SessionsAndDashboard(t *testing.T) {
	ctx := context.Background()

	Convey("Given an enrolled user with some attempts", t, func() {
		store := repository.NewMemoryStore()
		svc := newStartedService(t, store)

		creds, err := svc.Register(ctx, "bob", "a-decent-password", enrollmentAttempt(), uuid.NewString())
		So(err, ShouldBeNil)

		_, err = svc.Login(ctx, "bob", "wrong", enrollmentAttempt(), uuid.NewString())
		So(err, ShouldEqual, auth.ErrBadCredentials)
		result, err := svc.Login(ctx, "bob", "a-decent-password", enrollmentAttempt(), uuid.NewString())
		So(err, ShouldBeNil)

		Convey("When the dashboard is requested with a live session", func() {
			data, err := svc.Dashboard(ctx, result.Credentials.Session.ID)
			So(err, ShouldBeNil)
			So(data.Username, ShouldEqual, "bob")
			So(data.LastScore, ShouldEqual, 100.0)
		})

		Convey("When the audit pipeline has drained", func() {
			svc.Stop()

			success, failure, err := store.AttemptTotals(ctx, creds.Session.UserID)
			So(err, ShouldBeNil)
			So(success, ShouldEqual, 1)
			So(failure, ShouldEqual, 1)
		})

		Convey("When the session is logged out", func() {
			svc.Logout(result.Credentials.Session.ID)
			_, err := svc.Session(result.Credentials.Session.ID)
			So(err, ShouldEqual, auth.ErrNoSession)
		})

		Convey("When stats are requested", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldBeTrue)
			So(stats["threshold"], ShouldEqual, 75.0)
			So(stats["users"], ShouldEqual, 1)
		})

		Reset(func() {
			svc.Stop()
		})
	})
}
