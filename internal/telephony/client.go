package telephony

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"callscreen/internal/config"
	"callscreen/internal/errors"

	"github.com/hashicorp/go-retryablehttp"
	twilio "github.com/twilio/twilio-go/client"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// VoicePath is the turn webhook route.
const VoicePath = "/voice"

const (
	twilioAPIHost    = "api.twilio.com"
	twilioAPIVersion = "/2010-04-01"
)

// Client places outbound calls through the Twilio REST API.
type Client struct {
	transport   http.RoundTripper
	timeout     time.Duration
	accountSID  string
	authToken   string
	from        string
	callbackURL string
	logger      *errors.Logger
}

// NewClient builds a client whose calls fetch TwiML from publicURL + /voice.
// transport wraps the underlying HTTP transport, typically for tracing.
func NewClient(cfg config.TelephonyConfig, publicURL string, transport http.RoundTripper, logger *errors.Logger) (*Client, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			"telephony requires accountSid, authToken and fromNumber", nil)
	}
	if publicURL == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			"server.publicURL is required to place calls", nil)
	}
	if logger == nil {
		logger = errors.Discard()
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	if base := strings.TrimRight(cfg.APIBaseURL, "/"); base != "" && base != "https://"+twilioAPIHost+twilioAPIVersion {
		u, err := url.Parse(base)
		if err != nil || u.Host == "" {
			return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
				fmt.Sprintf("invalid telephony.apiBaseURL %q", cfg.APIBaseURL), err)
		}
		transport = baseURLTransport{base: u, next: transport}
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient = &http.Client{Transport: transport}
	rc.CheckRetry = retryUnsentOrThrottled
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = leveledLogger{logger}

	return &Client{
		transport:   &retryablehttp.RoundTripper{Client: rc},
		timeout:     cfg.Timeout,
		accountSID:  cfg.AccountSID,
		authToken:   cfg.AuthToken,
		from:        cfg.FromNumber,
		callbackURL: strings.TrimRight(publicURL, "/") + VoicePath,
		logger:      logger,
	}, nil
}

// CallbackURL is the webhook Twilio requests for each turn.
func (c *Client) CallbackURL() string { return c.callbackURL }

// AuthToken is used to validate webhook signatures.
func (c *Client) AuthToken() string { return c.authToken }

// PlaceCall dials to and returns the new call SID.
func (c *Client) PlaceCall(ctx context.Context, to string) (string, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return "", errors.NewValidationError(errors.ErrCodeMissingField, "destination phone number is required", nil)
	}

	params := &twilioapi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(c.from)
	params.SetUrl(c.callbackURL)
	params.SetMethod(http.MethodPost)

	call, err := c.api(ctx).CreateCall(params)
	if err != nil {
		appErr := errors.NewNetworkError(errors.ErrCodeCallPlacementFailed, "call request failed", err).
			WithContext("to", to)
		var restErr *twilio.TwilioRestError
		if stderrors.As(err, &restErr) {
			appErr = appErr.WithContext("twilio_code", restErr.Code).WithContext("http_status", restErr.Status)
		}
		return "", appErr
	}
	if call == nil || call.Sid == nil || *call.Sid == "" {
		return "", errors.NewNetworkError(errors.ErrCodeCallPlacementFailed, "call response carried no SID", nil).
			WithContext("to", to)
	}

	status := ""
	if call.Status != nil {
		status = *call.Status
	}
	c.logger.Info("Outbound call created", "call_id", *call.Sid, "status", status)
	return *call.Sid, nil
}

// api returns a REST service whose requests are bound to ctx.
func (c *Client) api(ctx context.Context) *twilioapi.ApiService {
	rest := &twilio.Client{
		Credentials: twilio.NewCredentials(c.accountSID, c.authToken),
		HTTPClient: &http.Client{
			Transport: contextTransport{ctx: ctx, next: c.transport},
			Timeout:   c.timeout,
		},
	}
	rest.SetAccountSid(c.accountSID)
	return twilioapi.NewApiServiceWithClient(rest)
}

// retryUnsentOrThrottled retries call creation only when Twilio cannot have
// acted on the request: the connection was never established, or the
// request was throttled. A 5xx may follow a created call and is final.
func retryUnsentOrThrottled(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		var opErr *net.OpError
		if stderrors.As(err, &opErr) && opErr.Op == "dial" {
			return true, nil
		}
		var dnsErr *net.DNSError
		return stderrors.As(err, &dnsErr), nil
	}
	return resp.StatusCode == http.StatusTooManyRequests, nil
}

// contextTransport attaches ctx to requests issued by the Twilio client,
// which does not take one itself.
type contextTransport struct {
	ctx  context.Context
	next http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.next.RoundTrip(req.WithContext(t.ctx))
}

// baseURLTransport sends API requests to a configured host instead of
// api.twilio.com.
type baseURLTransport struct {
	base *url.URL
	next http.RoundTripper
}

func (t baseURLTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Host != twilioAPIHost {
		return t.next.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.URL.Scheme = t.base.Scheme
	r.URL.Host = t.base.Host
	r.URL.Path = strings.TrimRight(t.base.Path, "/") + strings.TrimPrefix(req.URL.Path, twilioAPIVersion)
	r.URL.RawPath = ""
	r.Host = ""
	return t.next.RoundTrip(r)
}

// leveledLogger adapts errors.Logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	l *errors.Logger
}

func (a leveledLogger) Error(msg string, keysAndValues ...any) {
	a.l.LogError(fmt.Errorf("%s", msg), "Twilio HTTP error", keysAndValues...)
}

func (a leveledLogger) Info(msg string, keysAndValues ...any) {
	a.l.Debug(msg, keysAndValues...)
}

func (a leveledLogger) Debug(msg string, keysAndValues ...any) {
	a.l.Debug(msg, keysAndValues...)
}

func (a leveledLogger) Warn(msg string, keysAndValues ...any) {
	a.l.Warn(msg, keysAndValues...)
}
