package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/typeshield/typeshield/internal/adapters/http/api"
	"github.com/typeshield/typeshield/internal/adapters/repository"
	"github.com/typeshield/typeshield/internal/app"
	"github.com/typeshield/typeshield/internal/auth"
	"github.com/typeshield/typeshield/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func newTestServer(t *testing.T) (*httptest.Server, *app.Service) {
	t.Helper()
	svc := app.New(
		app.WithStore(repository.NewMemoryStore()),
		app.WithThreshold(75),
		app.WithAuditWriterCount(1),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)

	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(context.Background(), mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, svc
}

func credentialsBody(username, password string, mutate func(map[string]any)) []byte {
	behaviour := map[string]any{
		"attempt_id":   uuid.NewString(),
		"dwell_times":  []float64{100, 100, 100},
		"flight_times": []float64{50, 50},
		"total_time":   300.0,
		"error_count":  0,
		"device_type":  "fine",
	}
	if mutate != nil {
		mutate(behaviour)
	}
	body, _ := json.Marshal(map[string]any{
		"username":  username,
		"password":  password,
		"behaviour": behaviour,
	})
	return body
}

func postJSON(t *testing.T, url string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return decoded
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookie {
			return c
		}
	}
	return nil
}

func TestRegisterEndpoint(t *testing.T) {
	Convey("Given the API server", t, func() {
		ts, _ := newTestServer(t)

		Convey("When a new user registers", func() {
			resp := postJSON(t, ts.URL+"/api/register", credentialsBody("alice", "a-long-password", nil))
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)

			body := decodeBody(t, resp)
			So(body["username"], ShouldEqual, "alice")
			So(body["score"], ShouldEqual, 100.0)
			So(body["token"], ShouldNotBeEmpty)
			So(sessionCookie(resp), ShouldNotBeNil)
		})

		Convey("When the username is already taken", func() {
			resp := postJSON(t, ts.URL+"/api/register", credentialsBody("bob", "a-long-password", nil))
			resp.Body.Close()

			resp = postJSON(t, ts.URL+"/api/register", credentialsBody("bob", "other-password", nil))
			So(resp.StatusCode, ShouldEqual, http.StatusConflict)
			So(decodeBody(t, resp)["code"], ShouldEqual, "username_taken")
		})

		Convey("When the payload carries negative timings", func() {
			body := credentialsBody("carol", "a-long-password", func(b map[string]any) {
				b["dwell_times"] = []float64{100, -5, 100}
			})
			resp := postJSON(t, ts.URL+"/api/register", body)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the attempt_id is missing", func() {
			body := credentialsBody("dave", "a-long-password", func(b map[string]any) {
				b["attempt_id"] = ""
			})
			resp := postJSON(t, ts.URL+"/api/register", body)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the body is not JSON", func() {
			resp := postJSON(t, ts.URL+"/api/register", []byte("{nope"))
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the method is wrong", func() {
			resp, err := http.Get(ts.URL + "/api/register")
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestLoginEndpoint(t *testing.T) {
	Convey("Given an enrolled user", t, func() {
		ts, _ := newTestServer(t)
		resp := postJSON(t, ts.URL+"/api/register", credentialsBody("alice", "a-long-password", nil))
		resp.Body.Close()

		Convey("When the password and typing rhythm both match", func() {
			resp := postJSON(t, ts.URL+"/api/login", credentialsBody("alice", "a-long-password", nil))
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			body := decodeBody(t, resp)
			So(body["match"], ShouldEqual, true)
			So(body["score"], ShouldEqual, 100.0)
			So(body["token"], ShouldNotBeEmpty)
			So(sessionCookie(resp), ShouldNotBeNil)
		})

		Convey("When the password is wrong", func() {
			resp := postJSON(t, ts.URL+"/api/login", credentialsBody("alice", "wrong", nil))
			So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)

			body := decodeBody(t, resp)
			So(body["code"], ShouldEqual, "unauthorized")

			Convey("Then no behavioural detail leaks", func() {
				So(body, ShouldNotContainKey, "reasons")
				So(body, ShouldNotContainKey, "score")
			})
		})

		Convey("When the typing rhythm is off", func() {
			body := credentialsBody("alice", "a-long-password", func(b map[string]any) {
				b["dwell_times"] = []float64{50, 50, 50}
				b["flight_times"] = []float64{25, 25}
				b["total_time"] = 290.0
			})
			resp := postJSON(t, ts.URL+"/api/login", body)
			So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)

			decoded := decodeBody(t, resp)
			So(decoded["match"], ShouldEqual, false)
			So(decoded["score"], ShouldBeLessThan, 75.0)
			So(decoded["reasons"], ShouldNotBeEmpty)
			So(sessionCookie(resp), ShouldBeNil)
		})

		Convey("When the tempo is far off", func() {
			body := credentialsBody("alice", "a-long-password", func(b map[string]any) {
				b["total_time"] = 900.0
			})
			resp := postJSON(t, ts.URL+"/api/login", body)
			So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)

			decoded := decodeBody(t, resp)
			So(decoded["score"], ShouldEqual, 0.0)
			reasons, ok := decoded["reasons"].([]any)
			So(ok, ShouldBeTrue)
			So(reasons, ShouldResemble, []any{"Overall tempo differs too much from enrollment"})
		})

		Convey("When a capture payload is replayed", func() {
			attemptID := uuid.NewString()
			fix := func(b map[string]any) { b["attempt_id"] = attemptID }

			resp := postJSON(t, ts.URL+"/api/login", credentialsBody("alice", "a-long-password", fix))
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			resp = postJSON(t, ts.URL+"/api/login", credentialsBody("alice", "a-long-password", fix))
			So(resp.StatusCode, ShouldEqual, http.StatusConflict)
			So(decodeBody(t, resp)["code"], ShouldEqual, "replayed_attempt")
		})

		Convey("When the user is unknown", func() {
			resp := postJSON(t, ts.URL+"/api/login", credentialsBody("mallory", "whatever-pass", nil))
			So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
		})
	})
}

func TestDashboardAndLogout(t *testing.T) {
	Convey("Given a logged-in user", t, func() {
		ts, _ := newTestServer(t)
		resp := postJSON(t, ts.URL+"/api/register", credentialsBody("alice", "a-long-password", nil))
		resp.Body.Close()
		cookie := sessionCookie(resp)
		So(cookie, ShouldNotBeNil)

		getDashboard := func(c *http.Cookie) *http.Response {
			req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/dashboard", nil)
			if c != nil {
				req.AddCookie(c)
			}
			r, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			return r
		}

		Convey("When the dashboard is requested with the session cookie", func() {
			resp := getDashboard(cookie)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			body := decodeBody(t, resp)
			So(body["username"], ShouldEqual, "alice")
			So(body["last_score"], ShouldEqual, 100.0)
		})

		Convey("When the dashboard is requested without a session", func() {
			resp := getDashboard(nil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When the session id is garbage", func() {
			resp := getDashboard(&http.Cookie{Name: auth.SessionCookie, Value: "not-a-uuid"})
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When the user logs out", func() {
			req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/logout", nil)
			req.AddCookie(cookie)
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			Convey("Then the session no longer works", func() {
				resp := getDashboard(cookie)
				resp.Body.Close()
				So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
			})
		})
	})
}

func TestStatsAndHealth(t *testing.T) {
	Convey("Given the API server", t, func() {
		ts, _ := newTestServer(t)

		Convey("When stats are requested", func() {
			resp, err := http.Get(ts.URL + "/stats")
			So(err, ShouldBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			body := decodeBody(t, resp)
			So(body["started"], ShouldEqual, true)
			So(fmt.Sprintf("%v", body["threshold"]), ShouldEqual, "75")
		})

		Convey("When health is probed", func() {
			resp, err := http.Get(ts.URL + "/healthz")
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})
	})
}
