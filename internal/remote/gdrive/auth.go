package gdrive

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

// DefaultTokenFile is the default path for storing OAuth tokens
const DefaultTokenFile = "gdrive-token.json"

// Token represents a stored OAuth2 token
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
}

// toOAuth2Token converts to golang.org/x/oauth2.Token
func (t *Token) toOAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

// fromOAuth2Token creates Token from oauth2.Token
func fromOAuth2Token(t *oauth2.Token) *Token {
	return &Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

// Authenticator handles OAuth2 authentication for the Drive backend
type Authenticator struct {
	config    *oauth2.Config
	tokenPath string
}

// NewAuthenticator creates a new authenticator
func NewAuthenticator(clientID, clientSecret, tokenPath string) *Authenticator {
	if tokenPath == "" {
		configDir, err := os.UserConfigDir()
		if err == nil {
			tokenPath = filepath.Join(configDir, "mrg", DefaultTokenFile)
		} else {
			tokenPath = DefaultTokenFile
		}
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes: []string{
			drive.DriveFileScope,
		},
		Endpoint: google.Endpoint,
	}

	return &Authenticator{
		config:    config,
		tokenPath: tokenPath,
	}
}

// GetClient returns a valid token, refreshing it if possible
func (a *Authenticator) GetClient(ctx context.Context) (*oauth2.Token, error) {
	token, err := a.loadToken()
	if err != nil {
		return nil, fmt.Errorf("no token found, please run 'mrg auth' first")
	}

	if token.Valid() {
		return token, nil
	}

	if token.RefreshToken != "" {
		refreshed, err := a.RefreshToken(ctx, token)
		if err == nil {
			return refreshed, nil
		}
	}

	return nil, fmt.Errorf("token expired and refresh failed, please run 'mrg auth' to re-authenticate")
}

// generateRandomState generates a cryptographically secure random state string
func generateRandomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Authenticate performs the interactive authorization-code flow
func (a *Authenticator) Authenticate(ctx context.Context) (*oauth2.Token, error) {
	state, err := generateRandomState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	authURL := a.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
	fmt.Printf("\nTo authorize mrg to access the document library:\n\n")
	fmt.Printf("1. Visit this URL:\n   %s\n\n", authURL)
	fmt.Printf("2. Sign in and authorize the application\n\n")
	fmt.Printf("3. Copy the authorization code and paste it below\n\n")
	fmt.Printf("Enter authorization code: ")

	var code string
	if _, err := fmt.Scan(&code); err != nil {
		return nil, fmt.Errorf("failed to read authorization code: %w", err)
	}

	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}

	if err := a.saveToken(token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}

	fmt.Println("\nAuthentication successful! Token saved.")
	return token, nil
}

// RefreshToken refreshes an expired token and persists the result
func (a *Authenticator) RefreshToken(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	tokenSource := a.config.TokenSource(ctx, token)
	newToken, err := tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	if err := a.saveToken(newToken); err != nil {
		return nil, fmt.Errorf("failed to save refreshed token: %w", err)
	}

	return newToken, nil
}

// loadToken loads a token from file
func (a *Authenticator) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(a.tokenPath)
	if err != nil {
		return nil, err
	}

	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("invalid token file: %w", err)
	}

	return token.toOAuth2Token(), nil
}

// saveToken saves a token to file atomically using temp file + rename
func (a *Authenticator) saveToken(token *oauth2.Token) error {
	dir := filepath.Dir(a.tokenPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	t := fromOAuth2Token(token)
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}

	tempPath := a.tokenPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp token file: %w", err)
	}

	if err := os.Rename(tempPath, a.tokenPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename token file: %w", err)
	}

	return nil
}

// TokenPath returns the path where tokens are stored
func (a *Authenticator) TokenPath() string {
	return a.tokenPath
}

// Config returns the underlying OAuth2 configuration
func (a *Authenticator) Config() *oauth2.Config {
	return a.config
}
