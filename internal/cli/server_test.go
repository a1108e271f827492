package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"probloom-client/internal/action"
	"probloom-client/internal/app"
	"probloom-client/internal/domain"
	"probloom-client/internal/infra/memory"
	redispub "probloom-client/internal/infra/redis"
	transport "probloom-client/internal/transport/http"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"
)

func TestFollowPeersForwardsToViews(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	self := redispub.NewSnapshotPublisher(client, "", "node-a", time.Minute)
	peer := redispub.NewSnapshotPublisher(client, "", "node-b", time.Minute)

	api := memory.NewProblemAPI(domain.Author{UserID: 1, Username: "guest"})
	service := app.NewProblemService(api, app.NewStore(app.WithObserver(self)), nil)
	ws := transport.NewWSHandler(service, nil)
	server := httptest.NewServer(http.HandlerFunc(ws.ServeWS))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[len("http"):], nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if typ, _ := readMessage(t, conn); typ != "state" {
		t.Fatalf("expected initial state, got %s", typ)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		followPeers(ctx, self, ws, zaptest.NewLogger(t))
	}()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.Now().Add(5 * time.Second)
	for len(mr.PubSubChannels("")) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("follower never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// a local dispatch publishes as node-a and must not come back as a peer message
	service.Store().Dispatch(action.FetchAllSolvers{})
	if err := peer.Publish(context.Background(), app.Snapshot{Seq: 9, Tag: action.TagDeleteProblemSet}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for {
		typ, raw := readMessage(t, conn)
		if typ != "peer" {
			continue
		}
		var got struct {
			Instance string       `json:"instance"`
			Snapshot app.Snapshot `json:"snapshot"`
		}
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("decode peer: %v", err)
		}
		if got.Instance != "node-b" || got.Snapshot.Seq != 9 || got.Snapshot.Tag != action.TagDeleteProblemSet {
			t.Fatalf("unexpected peer message %+v", got)
		}
		return
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg.Type, msg.Payload
}
