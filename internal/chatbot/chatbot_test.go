package chatbot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/yellowcard/backend/internal/models"
)

type stubResponder struct {
	reply string
	err   error
	calls int
}

func (s *stubResponder) Reply(context.Context, string) (string, error) {
	s.calls++
	return s.reply, s.err
}

type memChats struct {
	saved []models.ChatMessage
}

func (m *memChats) SaveMessages(_ context.Context, msgs ...models.ChatMessage) error {
	m.saved = append(m.saved, msgs...)
	return nil
}

func (m *memChats) GetConversation(_ context.Context, uid string, _ int64) ([]models.ChatMessage, error) {
	var out []models.ChatMessage
	for _, msg := range m.saved {
		if msg.UID == uid {
			out = append(out, msg)
		}
	}
	return out, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestGreetingOffersQuickReplies(t *testing.T) {
	bot := New(DefaultScript(), nil, nil, discard())
	g := bot.Greeting()
	assert.Contains(t, g.Message.Text, "Yellow Card Assistant")
	require.Len(t, g.QuickReplies, 2)
	assert.Equal(t, "View Benefits", g.QuickReplies[0].Title)
}

func TestQuickReplyHitsScript(t *testing.T) {
	remote := &stubResponder{reply: "from remote"}
	chats := &memChats{}
	bot := New(DefaultScript(), remote, chats, discard())

	resp := bot.Respond(context.Background(), "u1", "View Benefits")
	assert.Equal(t, SourceScript, resp.Message.Source)
	assert.Contains(t, resp.Message.Text, "Womb to Tomb")
	assert.Zero(t, remote.calls)

	require.Len(t, chats.saved, 2)
	assert.Equal(t, SenderMember, chats.saved[0].Sender)
	assert.Equal(t, SenderBot, chats.saved[1].Sender)
}

func TestUnmatchedGoesRemote(t *testing.T) {
	tests := []struct {
		name   string
		remote Responder
		source string
		text   string
	}{
		{name: "reply", remote: &stubResponder{reply: "Office hours are 8-5."}, source: SourceRemote, text: "Office hours are 8-5."},
		{name: "empty reply", remote: &stubResponder{}, source: SourceFallback, text: "Sorry, I didn't get that."},
		{name: "backend down", remote: &stubResponder{err: errors.New("dial tcp")}, source: SourceFallback, text: DefaultScript().Offline},
		{name: "no backend", remote: nil, source: SourceFallback, text: "Sorry, I didn't get that."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := New(DefaultScript(), tt.remote, &memChats{}, discard())
			resp := bot.Respond(context.Background(), "u1", "when is the office open?")
			assert.Equal(t, tt.source, resp.Message.Source)
			assert.Equal(t, tt.text, resp.Message.Text)
		})
	}
}

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
greeting: "Mabuhay!"
rules:
  - name: hours
    keywords: ["hours", "open"]
    reply: "City Hall is open 8AM to 5PM."
`), 0o600))

	s, err := LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, "Mabuhay!", s.Greeting)
	assert.Len(t, s.QuickReplies, 2)

	rule, ok := s.Match("What time are you OPEN?")
	require.True(t, ok)
	assert.Equal(t, "hours", rule.Name)

	_, ok = s.Match("hello")
	assert.False(t, ok)
}

func TestLoadScriptRejectsEmptyRule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - name: broken\n"), 0o600))
	_, err := LoadScript(path)
	assert.Error(t, err)
}

func TestRemoteClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req remoteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Message == "boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(remoteResponse{Reply: "echo: " + req.Message})
	}))
	defer srv.Close()

	c := NewRemoteClient(srv.URL, time.Second)
	reply, err := c.Reply(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", reply)

	_, err = c.Reply(context.Background(), "boom")
	assert.Error(t, err)
}

func TestShippedScriptLoads(t *testing.T) {
	script, err := LoadScript("../../configs/chatbot.yaml")
	require.NoError(t, err)
	assert.Len(t, script.QuickReplies, 2)

	rule, ok := script.Match("what is my member id?")
	require.True(t, ok)
	assert.Equal(t, "membership", rule.Name)
}
