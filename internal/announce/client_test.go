package announce_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/segue/internal/announce"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// startServiceServer launches a test WebSocket server standing in for the
// announcement service.
func startServiceServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// waitConnected polls until the client reports a live connection.
func waitConnected(t *testing.T, c *announce.Client) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for !c.Connected() {
		select {
		case <-deadline:
			t.Fatal("client never connected")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestClient_SendsRequests(t *testing.T) {
	frames := make(chan map[string]any, 2)
	srv := startServiceServer(t, func(conn *websocket.Conn) {
		for i := 0; i < 2; i++ {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				return
			}
			var m map[string]any
			if json.Unmarshal(data, &m) == nil {
				frames <- m
			}
		}
	})

	c := announce.NewClient(announce.ClientConfig{URL: wsURL(srv)})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)
	waitConnected(t, c)

	req := announce.Request{
		PairKey:        "A::B",
		PreviousTitle:  "A",
		PreviousArtist: "Artist A",
		NewTitle:       "B",
		NewArtist:      "Artist B",
	}
	if err := c.Announce(ctx, req); err != nil {
		t.Fatalf("Announce: %v", err)
	}
	req.TimeOfDay = "evening"
	if err := c.Prewarm(ctx, req); err != nil {
		t.Fatalf("Prewarm: %v", err)
	}

	first := <-frames
	if first["type"] != announce.TypeAnnounceNow {
		t.Errorf("expected ANNOUNCE_NOW, got %v", first["type"])
	}
	if first["previousTitle"] != "A" || first["newTitle"] != "B" {
		t.Errorf("unexpected announce payload: %v", first)
	}
	if _, sent := first["localTimeOfDay"]; sent {
		t.Error("ANNOUNCE_NOW must not carry a time of day")
	}

	second := <-frames
	if second["type"] != announce.TypePrewarm {
		t.Errorf("expected PREWARM, got %v", second["type"])
	}
	if second["localTimeOfDay"] != "evening" {
		t.Errorf("PREWARM must carry the time of day: %v", second)
	}
}

func TestClient_FinishedSignal(t *testing.T) {
	done := make(chan struct{})
	srv := startServiceServer(t, func(conn *websocket.Conn) {
		ctx := context.Background()
		conn.Write(ctx, websocket.MessageText, []byte(`{"type":"ANNOUNCE_FINISHED"}`))
		// Unknown and malformed frames must be ignored, not surfaced.
		conn.Write(ctx, websocket.MessageText, []byte(`{"type":"SOMETHING_ELSE"}`))
		conn.Write(ctx, websocket.MessageText, []byte(`{broken`))
		<-done
	})
	defer close(done)

	c := announce.NewClient(announce.ClientConfig{URL: wsURL(srv)})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	select {
	case <-c.Finished():
	case <-time.After(3 * time.Second):
		t.Fatal("ANNOUNCE_FINISHED never surfaced")
	}

	select {
	case <-c.Finished():
		t.Error("unexpected extra completion signal")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClient_SendWithoutConnection(t *testing.T) {
	c := announce.NewClient(announce.ClientConfig{URL: "ws://127.0.0.1:1/announce"})
	if err := c.Announce(context.Background(), announce.Request{PairKey: "A::B"}); err == nil {
		t.Error("expected error while disconnected")
	}
	if c.Connected() {
		t.Error("Connected should report false before Run")
	}
}

func TestSilent_CompletesImmediately(t *testing.T) {
	s := announce.NewSilent()
	if err := s.Announce(context.Background(), announce.Request{PairKey: "A::B"}); err != nil {
		t.Fatalf("silent announce: %v", err)
	}
	select {
	case <-s.Finished():
	default:
		t.Error("silent service must signal completion synchronously")
	}

	if err := s.Prewarm(context.Background(), announce.Request{}); err != nil {
		t.Errorf("silent prewarm: %v", err)
	}
}
