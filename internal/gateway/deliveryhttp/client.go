package deliveryhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BearBump/ParcelMatch/internal/errs"
	"github.com/BearBump/ParcelMatch/internal/gateway"
	"github.com/BearBump/ParcelMatch/internal/models"
	"github.com/BearBump/ParcelMatch/internal/session"
	"github.com/pkg/errors"
)

type Client struct {
	baseURL string
	sess    session.Accessor
	httpc   *http.Client
}

func New(baseURL string, sess session.Accessor, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:5001/api/v1"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		sess:    sess,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

// Конверт бэкенда: { success, data?, message? }.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// do выполняет запрос и раскрывает конверт в out (если out != nil).
// Токен читается из сессии заново на каждый вызов, не кэшируется.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	token, ok := c.sess.Token()
	if !ok {
		return errs.ErrAuthRequired
	}

	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request body")
		}
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &errs.NetworkError{Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errors.Wrapf(errs.ErrSessionExpired, "http %d", resp.StatusCode)
	}

	var env envelope
	if derr := json.NewDecoder(resp.Body).Decode(&env); derr != nil {
		if resp.StatusCode/100 != 2 {
			return &errs.NetworkError{StatusCode: resp.StatusCode, Msg: http.StatusText(resp.StatusCode)}
		}
		return &errs.NetworkError{StatusCode: resp.StatusCode, Msg: "malformed response: " + derr.Error()}
	}

	if resp.StatusCode/100 != 2 || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &errs.NetworkError{StatusCode: resp.StatusCode, Msg: msg}
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &errs.NetworkError{StatusCode: resp.StatusCode, Msg: "malformed payload: " + err.Error()}
		}
	}
	return nil
}

func (c *Client) GetPackage(ctx context.Context, trackingCodeOrID string) (*models.TrackedPackage, error) {
	var pkg models.TrackedPackage
	path := "/packages/" + url.PathEscape(trackingCodeOrID)
	if err := c.do(ctx, http.MethodGet, path, nil, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (c *Client) ListMyMatches(ctx context.Context) ([]*models.CarrierMatch, error) {
	var ms []*models.CarrierMatch
	if err := c.do(ctx, http.MethodGet, "/matches/me", nil, &ms); err != nil {
		return nil, err
	}
	return ms, nil
}

func (c *Client) FindCarriers(ctx context.Context, req gateway.FindCarriersRequest) ([]*models.CarrierCandidate, error) {
	var cs []*models.CarrierCandidate
	if err := c.do(ctx, http.MethodPost, "/matches/find-carriers", req, &cs); err != nil {
		return nil, err
	}
	return cs, nil
}

func (c *Client) CreateMatch(ctx context.Context, packageID, carrierID string) (*models.CarrierMatch, error) {
	body := map[string]string{"packageId": packageID, "carrierId": carrierID}
	var m models.CarrierMatch
	if err := c.do(ctx, http.MethodPost, "/matches", body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) AcceptMatch(ctx context.Context, matchID, notes string) (*models.CarrierMatch, error) {
	return c.postMatchAction(ctx, matchID, "accept", map[string]string{"notes": notes})
}

func (c *Client) RejectMatch(ctx context.Context, matchID, notes string) (*models.CarrierMatch, error) {
	return c.postMatchAction(ctx, matchID, "reject", map[string]string{"notes": notes})
}

func (c *Client) CancelMatch(ctx context.Context, matchID, reason string) (*models.CarrierMatch, error) {
	return c.postMatchAction(ctx, matchID, "cancel", map[string]string{"reason": reason})
}

func (c *Client) postMatchAction(ctx context.Context, matchID, action string, body any) (*models.CarrierMatch, error) {
	var m models.CarrierMatch
	path := fmt.Sprintf("/matches/%s/%s", url.PathEscape(matchID), action)
	if err := c.do(ctx, http.MethodPost, path, body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
