// Command sms-lambda fronts the Twilio SMS webhook with API Gateway and relays
// each delivery to the booking API, keeping the signature headers intact.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/lesson-booking-agent/pkg/logging"
)

const (
	webhookPath     = "/messaging/twilio/webhook"
	maxUpstreamBody = 1 << 20
)

type forwarder struct {
	upstream string
	timeout  time.Duration
	client   *http.Client
	logger   *logging.Logger
}

func newForwarderFromEnv(logger *logging.Logger) (*forwarder, error) {
	upstream := strings.TrimRight(strings.TrimSpace(os.Getenv("UPSTREAM_BASE_URL")), "/")
	if upstream == "" {
		return nil, errors.New("UPSTREAM_BASE_URL is required")
	}
	timeout := 5 * time.Second
	if raw := strings.TrimSpace(os.Getenv("UPSTREAM_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
		}
		timeout = parsed
	}
	return &forwarder{
		upstream: upstream,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

func main() {
	logger := logging.New(os.Getenv("LOG_LEVEL"))
	fwd, err := newForwarderFromEnv(logger)
	if err != nil {
		logger.Error("sms-lambda misconfigured", "error", err)
		os.Exit(1)
	}
	lambda.Start(fwd.handle)
}

func (f *forwarder) handle(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	path := requestPath(evt)
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))

	switch {
	case path == "/health":
		return respond(http.StatusOK, "ok"), nil
	case path != webhookPath:
		return respond(http.StatusNotFound, ""), nil
	case method != http.MethodPost:
		return respond(http.StatusMethodNotAllowed, ""), nil
	}

	body, err := eventBody(evt)
	if err != nil {
		return respond(http.StatusBadRequest, "invalid body"), nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, f.upstream+path, bytes.NewReader(body))
	if err != nil {
		return respond(http.StatusInternalServerError, ""), nil
	}
	forwardHeaders(req, evt)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Error("sms webhook relay failed", "error", err, "request_id", evt.RequestContext.RequestID)
		return respond(http.StatusBadGateway, "upstream error"), nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	out := respond(resp.StatusCode, string(respBody))
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		out.Headers["content-type"] = ct
	}
	f.logger.Info("sms webhook relayed", "status", resp.StatusCode, "request_id", evt.RequestContext.RequestID)
	return out, nil
}

// requestPath drops the API Gateway stage prefix when one is present.
func requestPath(evt events.APIGatewayV2HTTPRequest) string {
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}
	if stage := strings.TrimSpace(evt.RequestContext.Stage); stage != "" && stage != "$default" {
		path = strings.TrimPrefix(path, "/"+stage)
	}
	if path == "" {
		path = "/"
	}
	return path
}

func eventBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	return base64.StdEncoding.DecodeString(evt.Body)
}

// forwardHeaders keeps what the API needs to check X-Twilio-Signature against
// the public URL Twilio actually called.
func forwardHeaders(req *http.Request, evt events.APIGatewayV2HTTPRequest) {
	if ct := header(evt.Headers, "content-type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	if sig := header(evt.Headers, "x-twilio-signature"); sig != "" {
		req.Header.Set("X-Twilio-Signature", sig)
	}
	host := strings.TrimSpace(evt.RequestContext.DomainName)
	if host == "" {
		host = header(evt.Headers, "host")
	}
	if host != "" {
		req.Header.Set("X-Forwarded-Host", host)
	}
	proto := header(evt.Headers, "x-forwarded-proto")
	if proto == "" {
		proto = "https"
	}
	req.Header.Set("X-Forwarded-Proto", proto)
	if id := evt.RequestContext.RequestID; id != "" {
		req.Header.Set("X-Request-ID", id)
	}
}

func header(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func respond(status int, body string) events.APIGatewayV2HTTPResponse {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       body,
		Headers:    map[string]string{},
	}
}
