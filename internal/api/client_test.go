package api

import (
	"chatly-client/internal/chat"
	mytesting "chatly-client/internal/testing"
	"context"
	"errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func bootstrapClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(logger.Sugar(), append([]Option{BaseURL(srv.URL)}, opts...)...)
	require.NoError(t, err)

	return c
}

func TestNewBadBaseURL(t *testing.T) {
	t.Parallel()

	for _, u := range []string{"localhost:8000", "ftp://example.com", "://"} {
		_, err := New(zap.NewNop().Sugar(), BaseURL(u))
		require.True(t, errors.Is(err, ErrBadBaseURL), u)
	}
}

func TestSendMessage(t *testing.T) {
	t.Parallel()

	token := mytesting.RandString()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/message/send/u2", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))

		cookie, err := r.Cookie("token")
		require.NoError(t, err)
		require.Equal(t, token, cookie.Value)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "hello", r.FormValue("message"))

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "cat.png", header.Filename)
		require.Equal(t, "image/png", header.Header.Get("Content-Type"))
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, []byte("png-bytes"), data)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_id":"m1","sender":"u1","receiver":"u2","message":"hello","image":"https://cdn/cat.png"}`))
	})

	c := bootstrapClient(t, mux, Session("token", token))

	image := &chat.Attachment{Name: "cat.png", ContentType: "image/png", Data: []byte("png-bytes")}
	m, err := c.SendMessage(context.Background(), "u2", "hello", image)
	require.NoError(t, err)
	require.Equal(t, chat.Message{ID: "m1", Sender: "u1", Receiver: "u2", Text: "hello", Image: "https://cdn/cat.png"}, m)
}

func TestSendMessageTextOnly(t *testing.T) {
	t.Parallel()

	c := bootstrapClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("image")
		require.Equal(t, http.ErrMissingFile, err)

		_, _ = w.Write([]byte(`{"_id":"m2","sender":"u1","receiver":"u2","message":"` + r.FormValue("message") + `"}`))
	}))

	m, err := c.SendMessage(context.Background(), "u2", "plain", nil)
	require.NoError(t, err)
	require.Equal(t, "plain", m.Text)
}

func TestSendMessageStatusError(t *testing.T) {
	t.Parallel()

	c := bootstrapClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}))

	_, err := c.SendMessage(context.Background(), "u2", "hello", nil)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusUnauthorized, statusErr.Code)
	require.Equal(t, "Unauthorized", statusErr.Body)
	require.Equal(t, "/api/message/send/u2", statusErr.Path)
}

func TestSendMessageMalformedResponse(t *testing.T) {
	t.Parallel()

	c := bootstrapClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))

	_, err := c.SendMessage(context.Background(), "u2", "hello", nil)
	require.True(t, errors.Is(err, chat.ErrMalformedPayload))
}

func TestSendMessageTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)

	c := bootstrapClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), Timeout(50*time.Millisecond))

	_, err := c.SendMessage(context.Background(), "u2", "hello", nil)
	require.Error(t, err)
}

func TestFetchOtherUsers(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/others", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`[{"_id":"u2","name":"Alice"},{"_id":"u3","userName":"bob"}]`))
	})

	c := bootstrapClient(t, mux)

	users, err := c.FetchOtherUsers(context.Background())
	require.NoError(t, err)
	require.Equal(t, []chat.User{{ID: "u2", Name: "Alice"}, {ID: "u3", UserName: "bob"}}, users)
}

func TestFetchOtherUsersServerError(t *testing.T) {
	t.Parallel()

	c := bootstrapClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}))

	_, err := c.FetchOtherUsers(context.Background())

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusInternalServerError, statusErr.Code)
}

func TestLogout(t *testing.T) {
	t.Parallel()

	called := make(chan struct{}, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		called <- struct{}{}
		_, _ = w.Write([]byte(`{"message":"log out successfully"}`))
	})

	c := bootstrapClient(t, mux)

	require.NoError(t, c.Logout(context.Background()))
	require.Len(t, called, 1)
}

// countingTransport counts round trips made through the default transport
type countingTransport struct {
	mu    sync.Mutex
	count int
}

func (t *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	t.mu.Lock()
	t.count++
	t.mu.Unlock()
	return http.DefaultTransport.RoundTrip(r)
}

func TestSendMessageAttachmentNames(t *testing.T) {
	t.Parallel()

	names := make(chan string, 3)
	c := bootstrapClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		names <- header.Filename

		_, _ = w.Write([]byte(`{"_id":"m3","sender":"u1","receiver":"u2"}`))
	}), Transport(&countingTransport{}))

	for _, name := range []string{`my "cat".png`, "котик.png", "a b;c.png"} {
		image := &chat.Attachment{Name: name, ContentType: "image/png", Data: []byte("png")}
		_, err := c.SendMessage(context.Background(), "u2", "", image)
		require.NoError(t, err, name)
		require.Equal(t, name, <-names)
	}
}

func TestTransport(t *testing.T) {
	t.Parallel()

	transport := &countingTransport{}
	c := bootstrapClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}), Transport(transport))

	_, err := c.FetchOtherUsers(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Logout(context.Background()))

	transport.mu.Lock()
	defer transport.mu.Unlock()
	require.Equal(t, 2, transport.count)
}
