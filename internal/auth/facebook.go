// Package auth verifies Facebook access tokens and guards admin routes.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. The browser logs in with the Facebook JS SDK and receives a short-lived
//     access token. That part never touches this server.
//  2. The browser POSTs the token to /auth/facebook.
//  3. FacebookValidator asks the Graph API who the token belongs to.
//  4. The user service maps that identity to a local row, creating it on
//     first login.
//
// There is no session or JWT of our own. Protected routes take the same
// Facebook token as a bearer credential and resolve it again on every request.
package auth

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/oauth2"

	"github.com/sakif/fb-roster/internal/apperror"
	"github.com/sakif/fb-roster/internal/model"
)

// DefaultGraphURL is the Graph API root used when none is configured.
const DefaultGraphURL = "https://graph.facebook.com"

// profileFields is what we ask /me for. The picture modifier requests a
// 400x400 square so the admin panel does not upscale a 50px thumbnail.
const profileFields = "id,name,email,picture.width(400).height(400)"

// maxProfileBytes caps how much of a Graph response we are willing to read.
const maxProfileBytes = 1 << 20

// graphProfile is the portion of the Graph /me response we care about.
//
// Graph API docs: https://developers.facebook.com/docs/graph-api/reference/user
type graphProfile struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Email   *string `json:"email"`
	Picture *struct {
		Data *struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
	Error *graphError `json:"error"`
}

// graphError is the error object Graph returns instead of a profile.
// Code 190 is the usual "access token expired or invalid".
type graphError struct {
	Message     string `json:"message"`
	Type        string `json:"type"`
	Code        int    `json:"code"`
	Subcode     int    `json:"error_subcode"`
	IsTransient bool   `json:"is_transient"`
}

func (e *graphError) Error() string {
	return fmt.Sprintf("graph %s (code %d/%d): %s", e.Type, e.Code, e.Subcode, e.Message)
}

// FacebookValidator exchanges an opaque Facebook access token for the
// identity it belongs to.
type FacebookValidator struct {
	graphURL string
	timeout  time.Duration
	client   *http.Client // base transport; nil means http.DefaultClient
	logger   *slog.Logger
}

// NewFacebookValidator creates a validator that calls graphURL + "/me".
//
// timeout bounds the whole Graph round trip. Without it a stalled provider
// would hold the request (and a store connection waiting behind it) forever.
func NewFacebookValidator(graphURL string, timeout time.Duration, logger *slog.Logger) *FacebookValidator {
	if graphURL == "" {
		graphURL = DefaultGraphURL
	}
	return &FacebookValidator{
		graphURL: strings.TrimRight(graphURL, "/"),
		timeout:  timeout,
		logger:   logger,
	}
}

// WithHTTPClient sets the base HTTP client used for Graph calls.
// Tests point it at an httptest server's client.
func (v *FacebookValidator) WithHTTPClient(c *http.Client) *FacebookValidator {
	v.client = c
	return v
}

// Validate asks Graph who accessToken belongs to.
//
// Errors:
//   - apperror.ErrValidation: the token is empty
//   - apperror.ErrInvalidToken: Graph rejected the token, or the profile is
//     missing the id or picture we need
//   - apperror.ErrUpstreamUnavailable: Graph could not be reached, timed out,
//     failed with a 5xx, or flagged its own error as transient
//
// The token goes out in an Authorization header via oauth2's static token
// source rather than the access_token query parameter, so it never ends up
// in a URL that a proxy or error message might log.
func (v *FacebookValidator) Validate(ctx context.Context, accessToken string) (*model.Identity, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, apperror.ValidationFailed("accessToken", "Access token is required.")
	}

	fingerprint := TokenFingerprint(accessToken)

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}
	if v.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, v.client)
	}

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.graphURL+"/me?fields="+profileFields, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building Graph request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		v.logger.Warn("graph /me unreachable",
			slog.String("token", fingerprint),
			slog.String("error", err.Error()),
		)
		return nil, apperror.UpstreamUnavailable(err)
	}
	defer resp.Body.Close()

	var profile graphProfile
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBytes)).Decode(&profile)

	if decodeErr == nil && profile.Error != nil {
		v.logger.Info("graph rejected access token",
			slog.String("token", fingerprint),
			slog.Int("status", resp.StatusCode),
			slog.String("type", profile.Error.Type),
			slog.Int("code", profile.Error.Code),
			slog.Bool("transient", profile.Error.IsTransient),
		)
		if profile.Error.IsTransient {
			return nil, apperror.UpstreamUnavailable(profile.Error)
		}
		return nil, apperror.InvalidToken(profile.Error)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, apperror.UpstreamUnavailable(fmt.Errorf("graph /me returned status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, apperror.InvalidToken(fmt.Errorf("graph /me returned status %d", resp.StatusCode))
	case decodeErr != nil:
		return nil, apperror.UpstreamUnavailable(fmt.Errorf("decoding graph /me response: %w", decodeErr))
	}

	if profile.ID == "" {
		return nil, apperror.InvalidToken(errors.New("graph profile has no id"))
	}
	if profile.Picture == nil || profile.Picture.Data == nil || profile.Picture.Data.URL == "" {
		return nil, apperror.InvalidToken(errors.New("graph profile has no picture.data.url"))
	}

	v.logger.Debug("graph token verified",
		slog.String("token", fingerprint),
		slog.String("facebookID", profile.ID),
	)

	return &model.Identity{
		ExternalID: profile.ID,
		Name:       profile.Name,
		Email:      profile.Email,
		Picture:    profile.Picture.Data.URL,
	}, nil
}

// TokenFingerprint returns a short, non-reversible tag for an access token.
// Log lines use it to correlate requests made with the same token without
// ever writing the token itself.
func TokenFingerprint(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}
