package auth

import (
	"context"
	"fmt"
	"net/http"

	spotifyapi "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// OAuth handles the Spotify authorization-code flow used to link an
// account.
type OAuth struct {
	auth *spotifyauth.Authenticator
}

// NewOAuth creates the authorization-code flow helper.
func NewOAuth(clientID, clientSecret, redirectURL string) *OAuth {
	auth := spotifyauth.New(
		spotifyauth.WithClientID(clientID),
		spotifyauth.WithClientSecret(clientSecret),
		spotifyauth.WithRedirectURL(redirectURL),
		spotifyauth.WithScopes(
			spotifyauth.ScopeUserReadRecentlyPlayed,
			spotifyauth.ScopeUserReadPrivate,
		),
	)
	return &OAuth{auth: auth}
}

// AuthURL returns the provider authorization URL for the given state.
func (o *OAuth) AuthURL(state string) string {
	return o.auth.AuthURL(state)
}

// Exchange validates the callback request and exchanges its code for a
// token pair.
func (o *OAuth) Exchange(ctx context.Context, state string, r *http.Request) (*oauth2.Token, error) {
	token, err := o.auth.Token(ctx, state, r)
	if err != nil {
		return nil, fmt.Errorf("exchanging code for token: %w", err)
	}
	return token, nil
}

// UserID fetches the Spotify user ID the token belongs to.
func (o *OAuth) UserID(ctx context.Context, token *oauth2.Token) (string, error) {
	client := spotifyapi.New(o.auth.Client(ctx, token))
	user, err := client.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("getting current user: %w", err)
	}
	return user.ID, nil
}
