package eventbus

import (
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// startTestNATS starts an embedded NATS server with JetStream for testing.
// Returns the server and a cleanup function.
func startTestNATS(t *testing.T) (*natsserver.Server, func()) {
	t.Helper()
	dir := t.TempDir()
	opts := &natsserver.Options{
		Port:               -1, // random available port
		JetStream:          true,
		JetStreamMaxMemory: 256 << 20,
		JetStreamMaxStore:  256 << 20,
		StoreDir:           dir,
		NoLog:              true,
		NoSigs:             true,
	}
	ns, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("create test NATS server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("test NATS server failed to start")
	}
	return ns, ns.Shutdown
}

func connectJS(t *testing.T, ns *natsserver.Server) (*nats.Conn, nats.JetStreamContext) {
	t.Helper()
	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("connect to test NATS: %v", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		t.Fatalf("get JetStream context: %v", err)
	}
	return nc, js
}

func TestSubjectForEvent(t *testing.T) {
	tests := []struct {
		prefix    string
		eventType EventType
		want      string
	}{
		{"", EventRoundAccepted, "giveandtake.rounds.RoundAccepted"},
		{"giveandtake.rounds.", EventRoundRejected, "giveandtake.rounds.RoundRejected"},
		{"pizza", EventItemKilled, "pizza.ItemKilled"},
	}
	for _, tt := range tests {
		got := SubjectForEvent(tt.prefix, tt.eventType)
		if got != tt.want {
			t.Errorf("SubjectForEvent(%q, %s) = %q, want %q", tt.prefix, tt.eventType, got, tt.want)
		}
	}
}

func TestEnsureStreamsCreatesRoundStream(t *testing.T) {
	ns, cleanup := startTestNATS(t)
	defer cleanup()
	nc, js := connectJS(t, ns)
	defer nc.Close()

	if err := EnsureStreams(js, "pizza."); err != nil {
		t.Fatalf("EnsureStreams: %v", err)
	}
	info, err := js.StreamInfo(StreamRoundEvents)
	if err != nil {
		t.Fatalf("StreamInfo(%s): %v", StreamRoundEvents, err)
	}
	if len(info.Config.Subjects) != 1 || info.Config.Subjects[0] != "pizza.>" {
		t.Errorf("unexpected stream subjects %v", info.Config.Subjects)
	}
}

func TestEnsureStreamsIdempotent(t *testing.T) {
	ns, cleanup := startTestNATS(t)
	defer cleanup()
	nc, js := connectJS(t, ns)
	defer nc.Close()

	for i := 0; i < 3; i++ {
		if err := EnsureStreams(js, ""); err != nil {
			t.Fatalf("EnsureStreams call %d: %v", i+1, err)
		}
	}
}
