package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RESTDevice places calls through the provider's REST API instead of a
// media-bearing client SDK: call creation points the provider at the voice
// webhook for instructions. The transport carries no local audio, so mid-call
// mute and DTMF are reported as unsupported rather than silently dropped.

const defaultAPIBase = "https://api.twilio.com"

type RESTDevice struct {
	client *http.Client

	accountSID string
	authToken  string

	// from is the caller ID; voiceURL is the webhook the created call fetches
	// its dial instructions from.
	from     string
	voiceURL string

	baseURL string
}

type RESTDeviceConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	VoiceURL   string

	// BaseURL overrides the provider API endpoint. Tests point this at a
	// local server.
	BaseURL string

	HTTPClient *http.Client
}

func NewRESTDevice(cfg RESTDeviceConfig) (*RESTDevice, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("telephony: rest device requires account sid and auth token")
	}
	if cfg.From == "" || cfg.VoiceURL == "" {
		return nil, fmt.Errorf("telephony: rest device requires caller id and voice url")
	}
	d := &RESTDevice{
		client:     cfg.HTTPClient,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		voiceURL:   cfg.VoiceURL,
		baseURL:    cfg.BaseURL,
	}
	if d.client == nil {
		d.client = &http.Client{Timeout: 15 * time.Second}
	}
	if d.baseURL == "" {
		d.baseURL = defaultAPIBase
	}
	return d, nil
}

// NewRESTDeviceFactory adapts the REST device to the controller's factory
// contract. The REST transport has no async readiness handshake; the device
// is ready as soon as it is constructed, and the capability token is unused
// because the REST API authenticates with account credentials.
func NewRESTDeviceFactory(cfg RESTDeviceConfig) DeviceFactory {
	return func(ctx context.Context, token string, ev DeviceEvents) (Device, error) {
		d, err := NewRESTDevice(cfg)
		if err != nil {
			if ev.OnError != nil {
				ev.OnError(err)
			}
			return nil, err
		}
		if ev.OnReady != nil {
			ev.OnReady()
		}
		return d, nil
	}
}

type restCall struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

func (d *RESTDevice) Connect(ctx context.Context, to string, ev ConnEvents) (Conn, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", d.from)
	form.Set("Url", d.voiceURL)

	call, err := d.postCall(ctx, fmt.Sprintf("/2010-04-01/Accounts/%s/Calls.json", d.accountSID), form)
	if err != nil {
		return nil, err
	}

	conn := &restConn{device: d, callSID: call.SID, ev: ev}
	// The REST boundary has no media-level accept event; a successfully
	// created call is the accept signal at this transport.
	if ev.OnAccept != nil {
		ev.OnAccept()
	}
	return conn, nil
}

func (d *RESTDevice) postCall(ctx context.Context, path string, form url.Values) (restCall, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return restCall{}, err
	}
	req.SetBasicAuth(d.accountSID, d.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return restCall{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return restCall{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return restCall{}, fmt.Errorf("telephony: provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var call restCall
	if err := json.Unmarshal(body, &call); err != nil {
		return restCall{}, fmt.Errorf("telephony: malformed provider response: %w", err)
	}
	return call, nil
}

type restConn struct {
	device  *RESTDevice
	callSID string
	ev      ConnEvents
}

func (c *restConn) Disconnect(ctx context.Context) error {
	form := url.Values{}
	form.Set("Status", "completed")

	path := fmt.Sprintf("/2010-04-01/Accounts/%s/Calls/%s.json", c.device.accountSID, c.callSID)
	if _, err := c.device.postCall(ctx, path, form); err != nil {
		return err
	}
	if c.ev.OnDisconnect != nil {
		c.ev.OnDisconnect()
	}
	return nil
}

func (c *restConn) Mute(muted bool) error {
	return ErrUnsupportedTransport
}

func (c *restConn) SendDigits(digits string) error {
	return ErrUnsupportedTransport
}
