package coa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jmehdipour/isp-billing/internal/config"
)

// Action selects the RFC 5176 message the gateway sends to the NAS.
type Action string

const (
	// ActionUpdate is a CoA-Request: re-read rate limits for the live session.
	ActionUpdate Action = "coa"
	// ActionDisconnect is a Disconnect-Request: drop the live session.
	ActionDisconnect Action = "disconnect"
)

// Request asks the NAS fleet to apply a subscriber's current RADIUS state.
type Request struct {
	Action     Action `json:"action"`
	CustomerID int64  `json:"customer_id"`
	Username   string `json:"username"`
	Reason     string `json:"reason"` // event type that triggered it
}

// Error-Cause values (RFC 5176 section 3.5) a gateway may report with a NAK.
const (
	CauseUnsupportedAttribute = 401
	CauseMissingAttribute     = 402
	CauseInvalidRequest       = 404
	CauseSessionNotFound      = 503
	CauseSessionNotRemovable  = 504
	CauseResourcesUnavailable = 506
	CauseUnsupportedService   = 405
	CauseProhibited           = 501
)

var causeText = map[int]string{
	CauseUnsupportedAttribute: "unsupported attribute",
	CauseMissingAttribute:     "missing attribute",
	CauseInvalidRequest:       "invalid request",
	CauseUnsupportedService:   "unsupported service",
	CauseProhibited:           "administratively prohibited",
	CauseSessionNotFound:      "session context not found",
	CauseSessionNotRemovable:  "session context not removable",
	CauseResourcesUnavailable: "resources unavailable",
}

// ErrNak matches every *NakError.
var ErrNak = errors.New("coa nak")

// NakError is a CoA-NAK or Disconnect-NAK relayed by a gateway as a 4xx
// response. The gateway itself is healthy; resending the request elsewhere
// gets the same answer.
type NakError struct {
	Endpoint string
	Status   int
	Cause    int
}

func (e *NakError) Error() string {
	if text, ok := causeText[e.Cause]; ok {
		return fmt.Sprintf("coa nak endpoint=%s status=%d cause=%d (%s)", e.Endpoint, e.Status, e.Cause, text)
	}
	return fmt.Sprintf("coa nak endpoint=%s status=%d cause=%d", e.Endpoint, e.Status, e.Cause)
}

func (e *NakError) Is(target error) bool { return target == ErrNak }

// IsSessionNotFound reports whether err says the subscriber has no live session.
func IsSessionNotFound(err error) bool {
	var nak *NakError
	return errors.As(err, &nak) && (nak.Cause == CauseSessionNotFound || nak.Status == http.StatusNotFound)
}

type Endpoint interface {
	Name() string
	Allow() bool
	Send(ctx context.Context, req Request) error
}

// HTTPEndpoint posts requests to a gateway that speaks RFC 5176 to the NAS.
// 2xx is an ACK, 4xx a NAK, anything else a gateway fault.
type HTTPEndpoint struct {
	name    string
	url     string
	client  *http.Client
	breaker *Breaker
}

func NewHTTPEndpoint(name, baseURL, path string, timeoutMs, failThreshold, openForMs int) *HTTPEndpoint {
	if timeoutMs <= 0 {
		timeoutMs = 3000
	}
	if failThreshold <= 0 {
		failThreshold = 3
	}
	if openForMs <= 0 {
		openForMs = 15000
	}
	if path == "" {
		path = "/coa"
	}
	return &HTTPEndpoint{
		name:    name,
		url:     baseURL + path,
		client:  &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		breaker: NewBreaker(failThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

// EndpointsFrom builds the enabled endpoints of cfg.
func EndpointsFrom(cfg config.CoAConfig) []Endpoint {
	var out []Endpoint
	for _, ep := range cfg.Endpoints {
		if !ep.Enabled || ep.BaseURL == "" {
			continue
		}
		out = append(out, NewHTTPEndpoint(ep.Name, ep.BaseURL, ep.Path, ep.TimeoutMs, ep.Breaker.FailThreshold, ep.Breaker.OpenForMs))
	}
	return out
}

func (p *HTTPEndpoint) Name() string { return p.name }

func (p *HTTPEndpoint) Allow() bool { return p.breaker.Allow() }

// Send delivers req and feeds the outcome to the breaker. Callers must get
// true from Allow first.
func (p *HTTPEndpoint) Send(ctx context.Context, req Request) error {
	err := p.post(ctx, req)
	switch {
	case err == nil, errors.Is(err, ErrNak):
		p.breaker.Record(true)
	case ctx.Err() != nil:
		p.breaker.Abandon()
	default:
		p.breaker.Record(false)
	}
	return err
}

func (p *HTTPEndpoint) post(ctx context.Context, body Request) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		return nil
	case res.StatusCode >= 400 && res.StatusCode < 500:
		return &NakError{Endpoint: p.name, Status: res.StatusCode, Cause: readCause(res.Body)}
	default:
		return fmt.Errorf("coa endpoint=%s status=%d", p.name, res.StatusCode)
	}
}

// readCause extracts {"error_cause": N} from a NAK body, 0 when absent.
func readCause(r io.Reader) int {
	var body struct {
		ErrorCause int `json:"error_cause"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&body); err != nil {
		return 0
	}
	return body.ErrorCause
}
