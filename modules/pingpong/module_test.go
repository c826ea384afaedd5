package pingpong

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tessen/pkg/botapi"
	"tessen/pkg/tessen"
)

func newRecordingBot(t *testing.T, sent *[]botapi.SendMessageRequest) *botapi.Client {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("unexpected call: %s", r.URL.Path)
		}
		var request botapi.SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Errorf("decode request: %v", err)
		}
		*sent = append(*sent, request)
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	t.Cleanup(server.Close)

	bot, err := botapi.NewClient("123:TEST", botapi.WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	return bot
}

func TestModuleRegistersPingRule(t *testing.T) {
	t.Parallel()

	registration := tessen.Registration{}
	New().Register(&registration)

	registry, err := tessen.NewRegistry(registration)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	rules := registry.Rules()
	if len(rules) != 1 {
		t.Fatalf("rule count = %d, want 1", len(rules))
	}

	tests := []struct {
		text string
		want bool
	}{
		{text: "/ping", want: true},
		{text: "/PING", want: true},
		{text: "/ping@tessen_bot", want: true},
		{text: "/pingpong", want: false},
		{text: "say /ping", want: false},
	}
	for _, testCase := range tests {
		if got := rules[0].Expr.MatchString(testCase.text); got != testCase.want {
			t.Errorf("match %q = %t, want %t", testCase.text, got, testCase.want)
		}
	}
}

func TestHandlePingRepliesPong(t *testing.T) {
	t.Parallel()

	var sent []botapi.SendMessageRequest
	bot := newRecordingBot(t, &sent)

	msg := &tessen.Message{
		Variant: tessen.VariantMessage,
		Kind:    tessen.KindText,
		ChatID:  "42",
		Payload: &botapi.Message{
			MessageID: 7,
			Chat:      &botapi.Chat{ID: 42, Type: botapi.ChatTypePrivate},
			Text:      "/ping",
		},
	}
	if err := New().handlePing(context.Background(), bot, msg); err != nil {
		t.Fatalf("handle ping: %v", err)
	}

	if len(sent) != 1 {
		t.Fatalf("sent count = %d, want 1", len(sent))
	}
	if sent[0].ChatID != 42 || sent[0].Text != "pong!" || sent[0].ReplyToMessageID != 7 {
		t.Fatalf("unexpected reply: %+v", sent[0])
	}
}

func TestHandlePingIgnoresPayloadlessMessages(t *testing.T) {
	t.Parallel()

	var sent []botapi.SendMessageRequest
	bot := newRecordingBot(t, &sent)

	if err := New().handlePing(context.Background(), bot, &tessen.Message{}); err != nil {
		t.Fatalf("handle ping: %v", err)
	}
	if len(sent) != 0 {
		t.Fatalf("sent count = %d, want 0", len(sent))
	}
}
