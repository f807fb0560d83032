package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, status int) (*httptest.Server, *[]byte) {
	t.Helper()
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		got, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte("rate limited"))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    any
		wantErr bool
	}{
		{name: "Should default to discord", cfg: Config{URL: "http://x"}, want: &Discord{}},
		{name: "Should build slack", cfg: Config{Kind: "Slack", URL: "http://x"}, want: &Slack{}},
		{name: "Should reject unknown kind", cfg: Config{Kind: "teams", URL: "http://x"}, wantErr: true},
		{name: "Should reject empty url", cfg: Config{Kind: KindDiscord}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, d)
		})
	}
}

func TestMessage_Text(t *testing.T) {
	assert.Equal(t, "H\n\nB", Message{Header: "H", Body: "B"}.Text())
	assert.Equal(t, "B", Message{Body: "B"}.Text())
	assert.Equal(t, "H", Message{Header: "H"}.Text())
}

func TestDiscord_Deliver(t *testing.T) {
	srv, got := capture(t, http.StatusNoContent)
	d, err := New(Config{Kind: KindDiscord, URL: srv.URL})
	require.NoError(t, err)

	err = d.Deliver(context.Background(), Message{
		Header:    "Stundenplan für **HEUTE**",
		Body:      "7:45 - 8:30 | FREI\n\n",
		Username:  "Stundenplan",
		AvatarURL: "https://example.com/a.png",
	})
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(*got, &payload))
	assert.Equal(t, "Stundenplan für **HEUTE**\n\n7:45 - 8:30 | FREI\n\n", payload["content"])
	assert.Equal(t, "Stundenplan", payload["username"])
	assert.Equal(t, "https://example.com/a.png", payload["avatar_url"])
	assert.Equal(t, []any{}, payload["embeds"])
	assert.Equal(t, []any{}, payload["attachments"])
}

func TestDiscord_Deliver_Rejected(t *testing.T) {
	srv, _ := capture(t, http.StatusTooManyRequests)
	d, err := New(Config{URL: srv.URL})
	require.NoError(t, err)

	err = d.Deliver(context.Background(), Message{Body: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestSlack_Deliver(t *testing.T) {
	srv, got := capture(t, http.StatusOK)
	d, err := New(Config{Kind: KindSlack, URL: srv.URL})
	require.NoError(t, err)

	err = d.Deliver(context.Background(), Message{Header: "H", Body: "B", Username: "bot", AvatarURL: "https://example.com/a.png"})
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(*got, &payload))
	assert.Equal(t, "H\n\nB", payload["text"])
	assert.Equal(t, "bot", payload["username"])
	assert.Equal(t, "https://example.com/a.png", payload["icon_url"])
}

func TestSlack_Deliver_Rejected(t *testing.T) {
	srv, _ := capture(t, http.StatusBadRequest)
	d, err := New(Config{Kind: KindSlack, URL: srv.URL})
	require.NoError(t, err)

	assert.Error(t, d.Deliver(context.Background(), Message{Body: "x"}))
}
