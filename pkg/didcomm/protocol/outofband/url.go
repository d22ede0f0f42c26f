/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outofband

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bluele/gcache"
	"github.com/cenkalti/backoff/v4"

	"github.com/hyperledger/aries-exchange-go/pkg/didcomm/common/service"
)

const (
	oobParam            = "oob"
	connectionParam     = "c_i"
	connectionlessParam = "d_m"

	legacyTypePrefix = "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/"
	typePrefix       = "https://didcomm.org/"

	maxInvitationSize = 1 << 20
)

// ErrNoInvitation is returned when a URL carries no invitation in any known shape.
var ErrNoInvitation = errors.New("url carries no invitation")

// ParseInvitationURL decodes the invitation carried by an `oob`, `c_i` or `d_m` query parameter.
// ErrNoInvitation is returned when none of them is present.
func ParseInvitationURL(invitationURL string) (*Invitation, InvitationType, error) {
	u, err := url.Parse(invitationURL)
	if err != nil {
		return nil, "", fmt.Errorf("parse invitation url: %w", err)
	}

	query := u.Query()

	for _, param := range []string{oobParam, connectionParam, connectionlessParam} {
		encoded := query.Get(param)
		if encoded == "" {
			continue
		}

		raw, err := decodeBase64(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("decode %s parameter: %w", param, err)
		}

		return ParseInvitationJSON(raw)
	}

	return nil, "", ErrNoInvitation
}

// ParseInvitationJSON decodes an out-of-band invitation, a connections/1.0 invitation or a
// connection-less message into the out-of-band shape.
func ParseInvitationJSON(raw []byte) (*Invitation, InvitationType, error) {
	msg, err := service.ParseDIDCommMsgMap(raw)
	if err != nil {
		return nil, "", fmt.Errorf("parse invitation: %w", err)
	}

	msgType := strings.Replace(msg.Type(), legacyTypePrefix, typePrefix, 1)
	msg["@type"] = msgType

	switch msgType {
	case InvitationMsgType, "https://didcomm.org/out-of-band/1.0/invitation":
		inv := &Invitation{}
		if err = json.Unmarshal(raw, inv); err != nil {
			return nil, "", fmt.Errorf("unmarshal invitation: %w", err)
		}

		inv.Type = msgType

		return inv, InvitationTypeOutOfBand, nil
	case LegacyInvitationMsgType:
		legacy := &LegacyInvitation{}
		if err = json.Unmarshal(raw, legacy); err != nil {
			return nil, "", fmt.Errorf("unmarshal legacy invitation: %w", err)
		}

		inv, err := ConvertLegacyInvitation(legacy)
		if err != nil {
			return nil, "", err
		}

		return inv, InvitationTypeConnection, nil
	default:
		inv, err := ConvertConnectionlessMessage(msg)
		if err != nil {
			return nil, "", fmt.Errorf("message type %s: %w", msgType, err)
		}

		return inv, InvitationTypeConnectionless, nil
	}
}

// shortURLResolver fetches the invitations behind short URLs. Results are cached.
type shortURLResolver struct {
	client     *http.Client
	cache      gcache.Cache
	maxRetries uint64
	retryDelay time.Duration
}

type resolvedInvitation struct {
	invitation *Invitation
	kind       InvitationType
}

func newShortURLResolver(client *http.Client, cacheSize int, ttl time.Duration) *shortURLResolver {
	return &shortURLResolver{
		client:     client,
		cache:      gcache.New(cacheSize).LRU().Expiration(ttl).Build(),
		maxRetries: 3,
		retryDelay: 200 * time.Millisecond,
	}
}

// resolve returns the invitation of a URL, fetching it when the URL does not carry it inline.
func (r *shortURLResolver) resolve(ctx context.Context, invitationURL string) (*Invitation, InvitationType, error) {
	inv, kind, err := ParseInvitationURL(invitationURL)
	if !errors.Is(err, ErrNoInvitation) {
		return inv, kind, err
	}

	if cached, err := r.cache.Get(invitationURL); err == nil {
		res := cached.(*resolvedInvitation) // nolint: forcetypeassert

		return res.invitation, res.kind, nil
	}

	var res *resolvedInvitation

	err = backoff.Retry(func() error {
		var fetchErr error

		res, fetchErr = r.fetch(ctx, invitationURL)

		return fetchErr
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(r.retryDelay), r.maxRetries), ctx))
	if err != nil {
		return nil, "", fmt.Errorf("fetch invitation %s: %w", invitationURL, err)
	}

	if err = r.cache.Set(invitationURL, res); err != nil {
		logger.Warnf("cache invitation of %s: %v", invitationURL, err)
	}

	return res.invitation, res.kind, nil
}

// fetch performs one GET. Failures other than transport errors and server errors are permanent.
func (r *shortURLResolver) fetch(ctx context.Context, invitationURL string) (*resolvedInvitation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, invitationURL, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		if e := resp.Body.Close(); e != nil {
			logger.Warnf("close response body of %s: %v", invitationURL, e)
		}
	}()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")) // nolint: errcheck
	if mediaType == "application/json" {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxInvitationSize))
		if err != nil {
			return nil, err
		}

		inv, kind, err := ParseInvitationJSON(body)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		return &resolvedInvitation{invitation: inv, kind: kind}, nil
	}

	// a redirect that was followed may land on a url carrying the invitation
	inv, kind, err := ParseInvitationURL(resp.Request.URL.String())
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	return &resolvedInvitation{invitation: inv, kind: kind}, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")

	if raw, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return raw, nil
	}

	return base64.RawStdEncoding.DecodeString(s)
}

// invitationURL encodes the message as the given query parameter of the domain.
func invitationURL(domain, param string, msg interface{}) (string, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(domain)
	if err != nil {
		return "", fmt.Errorf("parse domain %s: %w", domain, err)
	}

	query := u.Query()
	query.Set(param, base64.RawURLEncoding.EncodeToString(raw))
	u.RawQuery = query.Encode()

	return u.String(), nil
}
