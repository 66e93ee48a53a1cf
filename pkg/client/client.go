package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"legion-prm/pkg/config"
	"legion-prm/pkg/errutil"
	"legion-prm/pkg/gen"
	"legion-prm/pkg/session"

	"github.com/go-resty/resty/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrNotLoggedIn = errutil.Unauthorized("not logged in", nil)

var Module = fx.Module("client",
	fx.Provide(Provide),
)

type Params struct {
	fx.In
	Lc      fx.Lifecycle
	Config  *config.Config
	Session *session.Session
	IDs     *gen.SnowflakeNode
}

func Provide(p Params) *Client {
	c := New(p.Config, p.Session, p.IDs)
	p.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			c.Close()
			return nil
		},
	})
	return c
}

// Client talks JSON to the legion API with the session's bearer token.
type Client struct {
	http    *resty.Client
	session *session.Session
	ids     *gen.SnowflakeNode
	prefix  string
}

func New(cfg *config.Config, sess *session.Session, ids *gen.SnowflakeNode) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.API.BaseURL, "/")).
		SetTimeout(cfg.API.Timeout).
		SetHeader("Accept", "application/json").
		SetLogger(zap.L().Sugar())

	return &Client{
		http:    rc,
		session: sess,
		ids:     ids,
		prefix:  cfg.API.Prefix,
	}
}

// Session returns the session whose token authenticates requests.
func (c *Client) Session() *session.Session {
	return c.session
}

func (c *Client) Close() {
	c.http.GetClient().CloseIdleConnections()
}

type Upload struct {
	Param    string
	FileName string
	Reader   io.Reader
}

// Request describes one API call. Path is relative to the API prefix.
// Anonymous requests carry no token and never trigger the auth failure hook.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Body      any
	Form      map[string]string
	File      *Upload
	Anonymous bool
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

func (c *Client) Patch(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Query: query}, out)
}

// Do sends req and decodes a successful JSON response into out when out is
// not nil.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	r, reqID, err := c.prepare(ctx, req)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := r.Execute(req.Method, c.prefix+req.Path)
	if err != nil {
		return c.transportError(ctx, req, reqID, err)
	}

	c.log(req, reqID, resp.StatusCode(), time.Since(start))

	if err := c.checkStatus(ctx, req, resp.StatusCode(), resp.Body()); err != nil {
		return err
	}

	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errutil.BadGateway("unexpected response from API", err)
	}
	return nil
}

// Download streams a binary response body into w and returns the file name
// advertised by the server.
func (c *Client) Download(ctx context.Context, path string, w io.Writer) (string, error) {
	req := Request{Method: http.MethodGet, Path: path}

	r, reqID, err := c.prepare(ctx, req)
	if err != nil {
		return "", err
	}
	r.SetDoNotParseResponse(true).SetHeader("Accept", "*/*")

	start := time.Now()
	resp, err := r.Execute(req.Method, c.prefix+req.Path)
	if err != nil {
		return "", c.transportError(ctx, req, reqID, err)
	}
	body := resp.RawBody()
	defer func() { _ = body.Close() }()

	c.log(req, reqID, resp.StatusCode(), time.Since(start))

	if resp.StatusCode() >= http.StatusMultipleChoices {
		payload, _ := io.ReadAll(io.LimitReader(body, 64<<10))
		return "", c.checkStatus(ctx, req, resp.StatusCode(), payload)
	}

	if _, err := io.Copy(w, body); err != nil {
		return "", c.transportError(ctx, req, reqID, err)
	}

	return fileName(resp.Header().Get("Content-Disposition")), nil
}

type banner struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Ping asks the API root whether the service is running. It needs no token
// and ignores the API prefix.
func (c *Client) Ping(ctx context.Context) error {
	req := Request{Method: http.MethodGet, Path: "/", Anonymous: true}

	r, reqID, err := c.prepare(ctx, req)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := r.Execute(req.Method, "/")
	if err != nil {
		return c.transportError(ctx, req, reqID, err)
	}
	c.log(req, reqID, resp.StatusCode(), time.Since(start))

	if err := c.checkStatus(ctx, req, resp.StatusCode(), resp.Body()); err != nil {
		return err
	}

	var b banner
	if err := json.Unmarshal(resp.Body(), &b); err != nil {
		return errutil.BadGateway("unexpected response from API", err)
	}
	if b.Status != "running" {
		return errutil.BadGateway(fmt.Sprintf("API reports status %q", b.Status), nil)
	}
	return nil
}

func (c *Client) prepare(ctx context.Context, req Request) (*resty.Request, string, error) {
	reqID := c.ids.RequestID()
	r := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", reqID)

	if !req.Anonymous {
		token, err := c.session.Token(ctx)
		if err != nil {
			return nil, "", errutil.Internal("failed to read session", err)
		}
		if token == "" {
			return nil, "", ErrNotLoggedIn
		}
		r.SetAuthToken(token)
	}

	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}

	switch {
	case req.File != nil:
		r.SetFileReader(req.File.Param, req.File.FileName, req.File.Reader)
	case req.Form != nil:
		r.SetFormData(req.Form)
	case req.Body != nil:
		r.SetHeader("Content-Type", "application/json").SetBody(req.Body)
	}

	return r, reqID, nil
}

func (c *Client) transportError(ctx context.Context, req Request, reqID string, err error) error {
	zap.L().Warn("api request failed",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.String("request_id", reqID),
		zap.Error(err),
	)

	if errors.Is(ctx.Err(), context.Canceled) {
		return errutil.ClientClosedRequest("request canceled", err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return errutil.Timeout("API did not respond in time", err)
	}
	return errutil.BadGateway("API unreachable", err)
}

func (c *Client) checkStatus(ctx context.Context, req Request, code int, body []byte) error {
	if code < http.StatusMultipleChoices {
		return nil
	}

	if !req.Anonymous && (code == http.StatusUnauthorized || code == http.StatusForbidden) {
		c.session.HandleAuthFailure(ctx)
	}

	msg := detail(body)
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", code)
	}
	return errutil.New(errutil.FromHTTPStatus(code), msg)
}

func (c *Client) log(req Request, reqID string, status int, took time.Duration) {
	zap.L().Debug("api request",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.String("request_id", reqID),
		zap.Int("status", status),
		zap.Duration("took", took),
	)
}

type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

type validationIssue struct {
	Msg string `json:"msg"`
}

// detail extracts the server supplied error text. String details are returned
// as is; validation lists are joined.
func detail(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}

	var text string
	if err := json.Unmarshal(eb.Detail, &text); err == nil && text != "" {
		return text
	}

	var issues []validationIssue
	if err := json.Unmarshal(eb.Detail, &issues); err == nil && len(issues) > 0 {
		msgs := make([]string, 0, len(issues))
		for _, issue := range issues {
			if issue.Msg != "" {
				msgs = append(msgs, issue.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return eb.Message
}

func fileName(contentDisposition string) string {
	if contentDisposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentDisposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}
