package drivers

import (
	"context"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/eduassist/portalsync/credentials"
	interrors "github.com/eduassist/portalsync/internal/errors"
	"github.com/eduassist/portalsync/platform"
	"github.com/eduassist/portalsync/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// GoogleScopes are the Classroom and Docs scopes requested on the
// authorization-code flow.
var GoogleScopes = []string{
	"https://www.googleapis.com/auth/classroom.courses.readonly",
	"https://www.googleapis.com/auth/classroom.coursework.me",
	"https://www.googleapis.com/auth/documents",
	"https://www.googleapis.com/auth/presentations",
	"https://www.googleapis.com/auth/drive.file",
}

// refreshTokenPrefix marks a stored secret that is a long-lived refresh
// token rather than a one-shot authorization code.
const refreshTokenPrefix = "refresh_token:"

// IDTokenVerifier validates the OIDC ID token returned with the code
// exchange. Satisfied by *oidc.IDTokenVerifier.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

var _ sessions.Driver = (*GoogleDriver)(nil)

// GoogleDriver authenticates against Google with a plain OAuth2
// authorization-code exchange. No page automation: the resulting
// session carries a self-refreshing HTTP client instead of a browser.
type GoogleDriver struct {
	cfg      *oauth2.Config
	verifier IDTokenVerifier
	logger   zerolog.Logger
}

// NewGoogleVerifier builds an ID-token verifier against Google's OIDC
// discovery document.
func NewGoogleVerifier(ctx context.Context, clientID string) (IDTokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, "https://accounts.google.com")
	if err != nil {
		return nil, errors.Wrap(err, "[NewGoogleVerifier] discover provider")
	}
	return provider.Verifier(&oidc.Config{ClientID: clientID}), nil
}

// NewGoogleDriver wires the driver. verifier may be nil, in which case
// ID tokens are not checked (tests, or deployments without OIDC).
func NewGoogleDriver(cfg *oauth2.Config, verifier IDTokenVerifier, logger zerolog.Logger) *GoogleDriver {
	return &GoogleDriver{
		cfg:      cfg,
		verifier: verifier,
		logger:   logger.With().Str("driver", string(platform.GoogleClassroom)).Logger(),
	}
}

func (d *GoogleDriver) Platform() platform.Platform { return platform.GoogleClassroom }

// Login exchanges the stored secret for a token. The secret is either a
// one-shot authorization code from the consent redirect, or a persisted
// refresh token prefixed with "refresh_token:"; both end in the same
// self-refreshing token source.
func (d *GoogleDriver) Login(ctx context.Context, cred credentials.Credential, secret credentials.Secret) (*sessions.Session, error) {
	var tok *oauth2.Token
	var err error

	if rt, ok := strings.CutPrefix(string(secret), refreshTokenPrefix); ok {
		// Force one refresh now so a revoked grant fails at login, not on
		// the first extraction.
		tok, err = d.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: rt}).Token()
		if err != nil {
			return nil, interrors.Wrapf(interrors.ErrAuthentication, "[GoogleDriver.Login] refresh grant for %s: %v", cred.Identifier, err)
		}
	} else {
		tok, err = d.cfg.Exchange(ctx, string(secret))
		if err != nil {
			return nil, interrors.Wrapf(interrors.ErrAuthentication, "[GoogleDriver.Login] code exchange for %s: %v", cred.Identifier, err)
		}
	}

	if d.verifier != nil {
		rawIDToken, ok := tok.Extra("id_token").(string)
		if !ok || rawIDToken == "" {
			return nil, interrors.Wrapf(interrors.ErrAuthentication, "[GoogleDriver.Login] no ID token in exchange response")
		}
		if _, err := d.verifier.Verify(ctx, rawIDToken); err != nil {
			return nil, interrors.Wrapf(interrors.ErrAuthentication, "[GoogleDriver.Login] ID token verification: %v", err)
		}
	}

	sess := sessions.NewSession("", platform.GoogleClassroom)
	sess.Token = tok
	// The client must outlive the login call; it is owned by the session
	// store, not bounded by the login timeout.
	sess.Client = oauth2.NewClient(context.Background(), d.cfg.TokenSource(context.Background(), tok))

	d.logger.Info().Str("identifier", cred.Identifier).Msg("google token obtained")
	return sess, nil
}
