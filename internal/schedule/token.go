package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/jilsnshah/alignflow/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// AuthorizedClient builds an HTTP client from an OAuth client-secret file
// and a previously saved token file. Obtaining the initial token is an
// offline setup step, not part of the server.
func AuthorizedClient(ctx context.Context, credentialsFile, tokenFile string, scopes ...string) (*http.Client, error) {
	secret, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("schedule: read credentials %s: %w", credentialsFile, err)
	}
	oc, err := google.ConfigFromJSON(secret, scopes...)
	if err != nil {
		return nil, fmt.Errorf("schedule: parse credentials: %w", err)
	}

	tok, err := loadToken(tokenFile)
	if err != nil {
		return nil, err
	}
	return oc.Client(ctx, tok), nil
}

func authorizedClient(ctx context.Context, cfg config.CalendarConfig, scopes ...string) (*http.Client, error) {
	return AuthorizedClient(ctx, cfg.CredentialsFile, cfg.TokenFile, scopes...)
}

func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schedule: open token %s: %w", path, err)
	}
	defer f.Close()

	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("schedule: decode token %s: %w", path, err)
	}
	return &tok, nil
}

// SaveToken writes a freshly obtained token for later runs.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("schedule: create token %s: %w", path, err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("schedule: encode token %s: %w", path, err)
	}
	return nil
}
