package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"motionsense-go/bus"
	"motionsense-go/types"
)

func newTestMonitor(t *testing.T) (*bus.Channel[types.InertialSample], *bus.Channel[types.ClassificationResult], *httptest.Server) {
	t.Helper()
	samples := bus.NewChannel[types.InertialSample]("imu")
	results := bus.NewChannel[types.ClassificationResult]("classification")

	s := New(":0", samples, results)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return samples, results, srv
}

func TestClassificationEndpoint(t *testing.T) {
	_, results, srv := newTestMonitor(t)

	resp, err := http.Get(srv.URL + "/api/classification")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before any result, got %d", resp.StatusCode)
	}

	_ = results.Publish(types.ClassificationResult{PredictedClass: 2, Confidence: 0.77})

	resp, err = http.Get(srv.URL + "/api/classification")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got types.ClassificationResult
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PredictedClass != 2 || got.Confidence != 0.77 {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestWebSocketStreamsSamples(t *testing.T) {
	samples, _, srv := newTestMonitor(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The subscription is registered inside the handler; give it a moment.
	time.Sleep(20 * time.Millisecond)
	_ = samples.Publish(types.InertialSample{AccelZ: 9.81})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got types.InertialSample
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.AccelZ != 9.81 {
		t.Fatalf("unexpected sample: %+v", got)
	}
}
