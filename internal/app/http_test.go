package app

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/tturner/cipadapter/internal/config"
)

func TestHTTPBridgeServesConnectionsAndAssemblies(t *testing.T) {
	a := New(config.TelemetryConfig{HTTPListenAddr: "127.0.0.1:0"}, testLogger(t))
	a.BindStack(
		func(id uint16) ([]byte, bool) {
			if id == 0x65 {
				return []byte{1, 2, 3}, true
			}
			return nil, false
		},
		func() []ConnectionSummary {
			return []ConnectionSummary{{ConsumingPoint: 1, ProducingPoint: 2, State: "Established"}}
		},
		nil,
	)

	srv := a.http
	ts := &testServer{bridge: srv}
	addr := ts.start(t)
	defer ts.stop()

	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get("http://" + addr + "/connections")
	if err != nil {
		t.Fatalf("GET /connections: %v", err)
	}
	defer resp.Body.Close()
	var conns []ConnectionSummary
	if err := json.NewDecoder(resp.Body).Decode(&conns); err != nil {
		t.Fatalf("decode connections: %v", err)
	}
	if len(conns) != 1 || conns[0].State != "Established" {
		t.Errorf("conns = %+v, want one Established connection", conns)
	}

	resp, err = http.Get("http://" + addr + "/assemblies/101")
	if err != nil {
		t.Fatalf("GET /assemblies/101: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("assemblies status = %d body=%s", resp.StatusCode, body)
	}
}

// testServer runs an httpBridge's router on a real ephemeral listener so
// tests can issue HTTP requests without relying on the bridge's own
// ListenAndServe address resolution timing.
type testServer struct {
	bridge *httpBridge
	srv    *http.Server
	ln     net.Listener
}

func (ts *testServer) start(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ts.ln = ln
	ts.srv = &http.Server{Handler: ts.bridge.router()}
	go ts.srv.Serve(ln)
	time.Sleep(20 * time.Millisecond)
	return ln.Addr().String()
}

func (ts *testServer) stop() {
	if ts.srv != nil {
		ts.srv.Close()
	}
}
