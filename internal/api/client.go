package api

import (
	"bytes"
	"chatly-client/internal/api/zapadapter"
	"chatly-client/internal/chat"
	"context"
	"errors"
	"fmt"
	"github.com/rs/xid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

// maxBodySize limits how much of a response body is read
const maxBodySize = 4 << 20

var (
	ErrBadBaseURL        = errors.New("base url must be absolute http(s) url")
	ErrBadAttachmentName = errors.New("attachment name cannot be encoded")
)

// StatusError is returned for responses with non-2xx status code
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Code, http.StatusText(e.Code), e.Body)
}

// Client performs credentialed requests against chat server
type Client struct {
	logger     *zap.SugaredLogger
	reqLogger  *zapadapter.Logger
	httpClient *http.Client
	baseURL    *url.URL
}

// New returns Client with session cookie from options stored in its cookie jar
func New(logger *zap.SugaredLogger, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	base, err := url.Parse(strings.TrimRight(cfg.baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBaseURL, err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBadBaseURL, cfg.baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if cfg.sessionToken != "" {
		jar.SetCookies(base, []*http.Cookie{{Name: cfg.cookieName, Value: cfg.sessionToken, Path: "/"}})
	}

	logger.Debugf("API client for %s (timeout: %v)", base, cfg.timeout)

	return &Client{
		logger:    logger,
		reqLogger: zapadapter.NewLogger(logger.Desugar()),
		httpClient: &http.Client{
			Transport: cfg.transport,
			Jar:       jar,
			Timeout:   cfg.timeout,
		},
		baseURL: base,
	}, nil
}

// SendMessage posts message to peerID as multipart form and returns it as stored by server
func (c *Client) SendMessage(ctx context.Context, peerID, text string, image *chat.Attachment) (chat.Message, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	if err := form.WriteField("message", text); err != nil {
		return chat.Message{}, err
	}

	if image != nil {
		contentType := image.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		disposition := mime.FormatMediaType("form-data", map[string]string{"name": "image", "filename": image.Name})
		if disposition == "" {
			return chat.Message{}, fmt.Errorf("%w: %q", ErrBadAttachmentName, image.Name)
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", disposition)
		h.Set("Content-Type", contentType)

		part, err := form.CreatePart(h)
		if err != nil {
			return chat.Message{}, err
		}
		if _, err := part.Write(image.Data); err != nil {
			return chat.Message{}, err
		}
	}

	if err := form.Close(); err != nil {
		return chat.Message{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/message/send/"+url.PathEscape(peerID), &body)
	if err != nil {
		return chat.Message{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	payload, err := c.do(req)
	if err != nil {
		return chat.Message{}, err
	}

	m, err := chat.DecodeMessage(payload)
	if err != nil {
		return chat.Message{}, fmt.Errorf("decoding sent message: %w", err)
	}

	return m, nil
}

// FetchOtherUsers returns every user except the session owner
func (c *Client) FetchOtherUsers(ctx context.Context) ([]chat.User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/user/others", nil)
	if err != nil {
		return nil, err
	}

	payload, err := c.do(req)
	if err != nil {
		return nil, err
	}

	users, err := chat.DecodeUsers(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding users: %w", err)
	}

	return users, nil
}

// Logout ends server session
func (c *Client) Logout(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/auth/logout", nil)
	if err != nil {
		return err
	}

	_, err = c.do(req)
	return err
}

// newRequest attaches a fresh request id to both context and X-Request-ID header
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	id := xid.New().String()
	ctx = zapadapter.NewContextWithID(ctx, id)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Request-ID", id)
	req.Header.Set("Accept", "application/json")

	return req, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	ctx := req.Context()
	start := time.Now()

	c.reqLogger.Log(ctx, zapcore.DebugLevel, "outgoing http request", map[string]interface{}{
		"method": req.Method,
		"uri":    req.URL.RequestURI(),
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.reqLogger.Log(ctx, zapcore.WarnLevel, "http request failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	c.reqLogger.Log(ctx, zapcore.DebugLevel, "http response", map[string]interface{}{
		"status":   resp.StatusCode,
		"bytes":    len(payload),
		"duration": time.Since(start),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method: req.Method,
			Path:   req.URL.Path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(payload)),
		}
	}

	return payload, nil
}
