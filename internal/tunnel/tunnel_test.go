package tunnel

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/whookdev/composer/internal/models"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// echoServer answers every message with a response carrying the same id.
func echoServer(t *testing.T) string {
	upgrader := Upgrader()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewConnection("echo", conn, discard())
		defer c.Close()

		for msg := range c.Messages() {
			reply := &models.Message{
				Type:      models.TypeResponse,
				RequestID: msg.RequestID,
				Reply:     &models.Reply{Response: &models.Response{Body: msg.Request.URL}},
			}
			if err := c.Send(r.Context(), reply); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSendAndReceive(t *testing.T) {
	url := echoServer(t)

	conn, err := Dial(context.Background(), url, discard())
	require.NoError(t, err)
	defer conn.Close()

	for _, id := range []string{"req_1", "req_2"} {
		err := conn.Send(context.Background(), &models.Message{
			Type:      models.TypeSendRequest,
			RequestID: id,
			Request:   &models.SendRequest{RequestOptions: models.RequestOptions{URL: "https://" + id}},
		})
		require.NoError(t, err)
	}

	for _, id := range []string{"req_1", "req_2"} {
		select {
		case msg := <-conn.Messages():
			require.Equal(t, models.TypeResponse, msg.Type)
			require.Equal(t, id, msg.RequestID)
			require.Equal(t, "https://"+id, msg.Reply.Response.Body)
		case <-time.After(5 * time.Second):
			t.Fatal("no reply")
		}
	}
}

func TestSendAfterClose(t *testing.T) {
	conn, err := Dial(context.Background(), echoServer(t), discard())
	require.NoError(t, err)

	require.NoError(t, conn.Close())

	select {
	case <-conn.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("connection did not finish")
	}

	_, open := <-conn.Messages()
	require.False(t, open)
	require.Error(t, conn.Send(context.Background(), &models.Message{Type: models.TypeSendRequest}))
}

func TestDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), discard())
	require.ErrorContains(t, err, "status 404")
}
