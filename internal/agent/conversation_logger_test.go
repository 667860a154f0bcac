package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ashureev/finagent/internal/journey"
)

func readTranscript(t *testing.T, path string) []ConversationLogEvent {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open transcript: %v", err)
	}
	defer f.Close()

	var events []ConversationLogEvent
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var ev ConversationLogEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("decode line %q: %v", sc.Text(), err)
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan transcript: %v", err)
	}
	return events
}

func TestTranscriptFollowsJourney(t *testing.T) {
	dir := t.TempDir()
	transcript, err := NewConversationLogger(ConversationLogConfig{Enabled: true, Dir: dir, QueueSize: 256}, nil)
	if err != nil {
		t.Fatalf("NewConversationLogger: %v", err)
	}
	svc := newTestService(t, newTestRepo(t), Options{Transcript: transcript})

	if _, err := svc.Start(context.Background(), "anon_1", "tab-1", journey.BankAccount); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Close drains the queue.
	if err := transcript.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	events := readTranscript(t, filepath.Join(dir, "anon_1", "tab-1.ndjson"))
	if len(events) < 2 {
		t.Fatalf("got %d transcript lines", len(events))
	}
	if first := events[0]; first.Direction != "inbound" || first.EventType != "journey_user" {
		t.Errorf("first line = %+v", first)
	}
	sawCard := false
	for _, ev := range events {
		if ev.EventType == "journey_thinking" {
			t.Errorf("thinking entry transcribed: %+v", ev)
		}
		if ev.Direction == "outbound" && ev.Journey != string(journey.BankAccount) {
			t.Errorf("outbound line outside the journey: %+v", ev)
		}
		sawCard = sawCard || ev.EventType == "journey_info-card"
	}
	if !sawCard {
		t.Error("OTP card missing from transcript")
	}
}

func TestConversationLoggerGlobalFileAndSafePaths(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "all", "all.ndjson")
	logger, err := NewConversationLogger(ConversationLogConfig{
		Enabled:       true,
		Dir:           dir,
		GlobalEnabled: true,
		GlobalPath:    global,
		QueueSize:     4,
	}, nil)
	if err != nil {
		t.Fatalf("NewConversationLogger: %v", err)
	}

	logger.Log(ConversationLogEvent{UserID: "../evil", SessionID: "tab/1", Direction: "inbound", ContentRaw: "**hi**"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	logger.Log(ConversationLogEvent{UserID: "late"}) // after Close: ignored

	events := readTranscript(t, filepath.Join(dir, "_evil", "tab_1.ndjson"))
	if len(events) != 1 || events[0].Content != "hi" || events[0].Timestamp == "" {
		t.Errorf("per-session events = %+v", events)
	}
	if got := readTranscript(t, global); len(got) != 1 {
		t.Errorf("global events = %d, want 1", len(got))
	}
	if _, err := os.Stat(filepath.Join(dir, "late")); !os.IsNotExist(err) {
		t.Error("event logged after Close")
	}
}

func TestConversationLoggerDisabled(t *testing.T) {
	logger, err := NewConversationLogger(ConversationLogConfig{Dir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("NewConversationLogger: %v", err)
	}
	if _, ok := logger.(noopConversationLogger); !ok {
		t.Errorf("disabled logger = %T", logger)
	}
}

func TestCleanForReadability(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"\x1b[31merror\x1b[0m plain", "error plain"},
		{"Your **Platinum** card is `ready`", "Your Platinum card is ready"},
		{"  spaced\n\tout  ", "spaced out"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := cleanForReadability(tt.raw); got != tt.want {
			t.Errorf("cleanForReadability(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
