package googleauth

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// tokenFile accepts both the layout written by oauth2.Token and the
// authorized-user layout written by Google's Python client libraries. The
// latter also records the OAuth client, so it can be refreshed on its own.
type tokenFile struct {
	AccessToken  string    `json:"access_token"`
	Token        string    `json:"token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	TokenURI     string    `json:"token_uri"`
}

func (tf *tokenFile) token() *oauth2.Token {
	tok := oauth2.Token{
		AccessToken:  tf.AccessToken,
		TokenType:    tf.TokenType,
		RefreshToken: tf.RefreshToken,
		Expiry:       tf.Expiry,
	}
	if tok.AccessToken == "" {
		tok.AccessToken = tf.Token
	}
	return &tok
}

// config returns the OAuth client recorded in the token file, or nil if there is none
func (tf *tokenFile) config(scopes []string) *oauth2.Config {
	if tf.ClientID == "" {
		return nil
	}
	tokenURL := tf.TokenURI
	if tokenURL == "" {
		tokenURL = google.Endpoint.TokenURL
	}
	return &oauth2.Config{
		ClientID:     tf.ClientID,
		ClientSecret: tf.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  google.Endpoint.AuthURL,
			TokenURL: tokenURL,
		},
		Scopes: scopes,
	}
}

func readTokenFile(path string) (*tokenFile, error) {
	if strings.HasSuffix(path, ".js") {
		log.Debug().Str("path", path).Msg("token file uses .js extension, treating as JSON")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tf tokenFile
	err = json.NewDecoder(f).Decode(&tf)
	if err != nil {
		return nil, fmt.Errorf("error decoding token from %s: %w", path, err)
	}

	if tf.AccessToken == "" && tf.Token == "" && tf.RefreshToken == "" {
		return nil, fmt.Errorf("token file %s contains neither an access token nor a refresh token", path)
	}
	return &tf, nil
}

// ReadToken reads a token from a local file
func ReadToken(path string) (*oauth2.Token, error) {
	tf, err := readTokenFile(path)
	if err != nil {
		return nil, err
	}
	return tf.token(), nil
}

// SaveToken saves a token to a file path, readable only by the current user
func SaveToken(path string, token *oauth2.Token) error {
	return saveToken(path, token, nil)
}

// saveToken writes the token, and the OAuth client if one is given, so that
// the file can be refreshed later without a credentials file
func saveToken(path string, token *oauth2.Token, client *oauth2.Config) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	var v interface{} = token
	if client != nil {
		v = struct {
			*oauth2.Token
			ClientID     string `json:"client_id"`
			ClientSecret string `json:"client_secret,omitempty"`
			TokenURI     string `json:"token_uri"`
		}{token, client.ClientID, client.ClientSecret, client.Endpoint.TokenURL}
	}

	err = json.NewEncoder(f).Encode(v)
	if err != nil {
		return err
	}
	return f.Close()
}

// savingTokenSource writes the token to a file each time it changes
type savingTokenSource struct {
	src    oauth2.TokenSource
	path   string
	last   string
	client *oauth2.Config // written alongside the token when set
}

func (ts *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := ts.src.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == ts.last {
		return tok, nil
	}

	ts.last = tok.AccessToken
	if ts.path == "" {
		return tok, nil
	}

	err = saveToken(ts.path, tok, ts.client)
	if err != nil {
		// not fatal: the user will simply have to authenticate again next time
		log.Warn().Err(err).Str("path", ts.path).Msg("could not save token, you may need to re-authenticate next time")
		return tok, nil
	}
	log.Debug().Str("path", ts.path).Msg("saved token")
	fmt.Printf("Credentials saved to %s for future use.\n", ts.path)
	return tok, nil
}

// fallbackTokenSource uses the browser flow when the saved token cannot be refreshed
type fallbackTokenSource struct {
	primary oauth2.TokenSource
	flow    oauth2.TokenSource
	refresh func(*oauth2.Token) oauth2.TokenSource
}

func (ts *fallbackTokenSource) Token() (*oauth2.Token, error) {
	if ts.primary != nil {
		tok, err := ts.primary.Token()
		if err == nil {
			return tok, nil
		}
		log.Warn().Err(err).Msg("could not refresh saved token, requesting new authorization")
		fmt.Println("Error refreshing credentials, requesting new authorization...")
		ts.primary = nil
	}

	tok, err := ts.flow.Token()
	if err != nil {
		return nil, err
	}

	// once the flow has run, subsequent refreshes go through the new token
	if ts.refresh != nil {
		ts.primary = ts.refresh(tok)
	}
	return tok, nil
}
