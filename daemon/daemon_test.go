package daemon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Brotsalat/zkill-ws-slack/feed"
	"github.com/Brotsalat/zkill-ws-slack/killmail"
	"github.com/Brotsalat/zkill-ws-slack/logging"
	"github.com/Brotsalat/zkill-ws-slack/reference"
	"github.com/Brotsalat/zkill-ws-slack/webhook"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const killFrame = `{"killID": 56473366, "killmail": {
  "killID": 56473366, "killTime": "2016.08.21 17:46:44",
  "solarSystem": {"id": 30002187, "name": "Amarr"},
  "victim": {"character": {"id": 95465499, "name": "Victim Pilot"},
    "alliance": {"id": 99000001, "name": "Victim Alliance"},
    "shipType": {"id": 587, "name": "Rifter"}, "damageTaken": 1000},
  "attackers": [{"character": {"id": 90000002, "name": "Hunter One"},
    "shipType": {"id": 17703, "name": "Imperial Navy Slicer"}, "damageDone": 1000, "finalBlow": true}]},
  "zkb": {"totalValue": 9500000}}`

// newCrest serves the Amarr location hierarchy.
func newCrest(t *testing.T) *httptest.Server {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bodies := map[string]string{
			"/solarsystems/30002187/": `{"id": 30002187, "name": "Amarr", "securityStatus": 1.0,
				"constellation": {"id": 20000322}}`,
			"/constellations/20000322/": `{"id": 20000322, "name": "Throne Worlds",
				"region": {"href": "` + srv.URL + `/regions/10000043/"}}`,
			"/regions/10000043/": `{"name": "Domain"}`,
		}

		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}

		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)

	return srv
}

// newRelay sends frames to every subscriber and keeps the connection open.
func newRelay(t *testing.T, frames ...string) string {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		for _, f := range frames {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(f))
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testConfig(feedUrl, crestUrl, webhookUrl string) *Config {
	return &Config{
		Watch: Watch{EntityID: 99000001, Kind: killmail.KindAlliance},
		Feed: feed.Config{
			Url:               feedUrl,
			UserAgent:         "zKill-WS Slack/1.1",
			HandshakeTimeout:  time.Second,
			KeepaliveInterval: time.Second,
		},
		Reference: reference.Config{BaseUrl: crestUrl + "/", UserAgent: "zKill-WS Slack/1.1"},
		Webhook: webhook.Config{
			Url:       webhookUrl,
			Flavor:    webhook.Slack,
			UserAgent: "zKill-WS Slack/1.1",
		},
		Logging:       logging.Config{Output: logging.CONSOLE},
		Metrics:       Metrics{Listen: "127.0.0.1:0"},
		ShutdownGrace: time.Second,
	}
}

func newLogging(t *testing.T, cfg *Config) *logging.Logging {
	logs, err := logging.NewLoggingFromConfig("zkill-ws-slack", cfg.Logging)
	require.NoError(t, err)

	return logs
}

func TestDaemon_Run(t *testing.T) {
	payloads := make(chan string, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payloads <- r.FormValue("payload")
	}))
	t.Cleanup(hook.Close)

	cfg := testConfig(newRelay(t, killFrame, `not json`), newCrest(t).URL, hook.URL)
	require.NoError(t, cfg.Validate())

	d, err := New(cfg, newLogging(t, cfg))
	require.NoError(t, err)
	require.NotNil(t, d.MetricsAddr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case payload := <-payloads:
		require.Contains(t, payload, `"title":"Victim Pilot was killed by Hunter One (2016.08.21 17:46:44)"`)
		require.Contains(t, payload, `"color":"danger"`)
		require.Contains(t, payload, "Throne Worlds")
	case err := <-done:
		require.FailNow(t, "daemon stopped early", "%v", err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no notification received")
	}

	// Counters are updated after the webhook responded, so they may lag behind the notification.
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + d.MetricsAddr().String() + "/metrics")
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()

		raw, _ := io.ReadAll(resp.Body)
		metrics := string(raw)

		return strings.Contains(metrics, "zkill_feed_frames_total 2") &&
			strings.Contains(metrics, `zkill_pipeline_failures_total{stage="decode"} 1`) &&
			strings.Contains(metrics, "zkill_notifications_published_total 1")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestDaemon_RunFeedLost(t *testing.T) {
	relay := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(relay.Close)

	cfg := testConfig("ws"+strings.TrimPrefix(relay.URL, "http"), newCrest(t).URL, "")
	cfg.Webhook.DryRun = true
	cfg.Metrics.Listen = ""
	require.NoError(t, cfg.Validate())

	d, err := New(cfg, newLogging(t, cfg))
	require.NoError(t, err)
	require.Nil(t, d.MetricsAddr())

	err = d.Run(context.Background())

	var connErr *feed.ConnectionError
	require.ErrorAs(t, err, &connErr)
	require.Equal(t, "dial", connErr.Op)
}
