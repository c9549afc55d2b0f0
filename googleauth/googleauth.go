// Package googleauth obtains OAuth tokens for Google APIs on behalf of a user
// running a command-line program. Tokens are cached in a local file and
// refreshed as needed; when no usable token exists the user is sent through
// the browser consent flow.
package googleauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrAuth is returned for any failure to obtain a usable token
var ErrAuth = errors.New("authentication failed")

// printed when the OAuth client descriptor is missing
const setupInstructions = `To use this program you need to:
  1. Go to https://console.cloud.google.com/
  2. Create a new project or select an existing one
  3. Enable the Blogger API v3
  4. Create OAuth 2.0 credentials (Desktop application)
  5. Download the credentials and save them as credentials.json`

// Options controls where credentials and tokens are found
type Options struct {
	CredentialsFile string   // OAuth client descriptor from the Google Cloud console
	TokenFile       string   // where the user's token is cached between runs
	Scopes          []string // scopes to request during the consent flow
}

// LoadConfig reads an OAuth client descriptor
func LoadConfig(path string, scopes ...string) (*oauth2.Config, error) {
	log.Debug().Str("path", path).Msg("looking for credentials file")
	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: credentials file %s not found\n\n%s", ErrAuth, path, setupInstructions)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: error reading credentials file: %v", ErrAuth, err)
	}

	config, err := google.ConfigFromJSON(buf, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to parse credentials file %s: %v", ErrAuth, path, err)
	}
	return config, nil
}

// browserFlow is a token source that performs the oauth consent flow in the
// user's browser, receiving the callback on a loopback port
type browserFlow struct {
	ctx    context.Context
	config *oauth2.Config
	open   func(url string) error // opens the consent page, browser.OpenURL if nil
}

// callbackResult is what the loopback server learns from the consent redirect
type callbackResult struct {
	code string
	err  error
}

// callbackHandler receives the redirect from the consent screen and sends the
// outcome on results. Requests without the expected state are answered with an
// error and otherwise ignored, so a stray request does not end the flow.
func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("oauth server received request")
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		query := r.URL.Query()
		if query.Get("state") != state {
			log.Debug().Msg("ignoring oauth callback with unexpected state parameter")
			http.Error(w, "unexpected state parameter", http.StatusBadRequest)
			return
		}

		var res callbackResult
		switch {
		case query.Get("error") != "":
			res.err = fmt.Errorf("authorization was denied: %s", query.Get("error"))
		case query.Get("code") == "":
			res.err = errors.New("there was no auth code in the callback from oauth flow")
		default:
			res.code = query.Get("code")
		}

		if res.err != nil {
			fmt.Fprintf(w, "gblog could not be authenticated: %v", res.err)
		} else {
			fmt.Fprintf(w, "gblog is authenticated. You may now close this page and return to the terminal.")
		}

		// only the first result is used
		select {
		case results <- res:
		default:
		}
	})
}

func (ts browserFlow) Token() (*oauth2.Token, error) {
	// pick an unused port to listen on
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("error opening a TCP port to receive the oauth callback: %w", err)
	}

	state, err := randomState()
	if err != nil {
		listener.Close()
		return nil, err
	}

	// set up HTTP server to listen for the callback from Google
	results := make(chan callbackResult, 1)
	server := http.Server{Handler: callbackHandler(state, results)}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()
	defer server.Shutdown(context.Background())

	// open the user's browser to the oauth screen
	config := *ts.config
	config.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d/", listener.Addr().(*net.TCPAddr).Port)
	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline)
	fmt.Println("Go to the following link in your browser to authorize gblog:\n" + authURL)
	open := ts.open
	if open == nil {
		open = browser.OpenURL
	}
	err = open(authURL)
	if err != nil {
		log.Debug().Err(err).Msg("could not open browser")
	}

	// wait for the callback
	var res callbackResult
	select {
	case res = <-results:
	case err := <-serveErr:
		return nil, fmt.Errorf("error running HTTP server to get oauth callback: %w", err)
	case <-ts.ctx.Done():
		return nil, ts.ctx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}

	// use the auth code to get a token
	tok, err := config.Exchange(ts.ctx, res.code)
	if err != nil {
		return nil, fmt.Errorf("error retrieving token from web: %w", err)
	}

	log.Debug().Msg("oauth flow completed")
	return tok, nil
}

func randomState() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("error generating oauth state: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}

// New creates a token source that reuses the token cached in opts.TokenFile,
// refreshes it when it expires, falls back to the browser flow when it cannot
// be refreshed, and rewrites the token file whenever the token changes.
func New(ctx context.Context, opts Options) (oauth2.TokenSource, error) {
	// try load the token from a file
	log.Debug().Str("path", opts.TokenFile).Msg("looking for token file")
	var tok *oauth2.Token
	tf, err := readTokenFile(opts.TokenFile)
	if err == nil {
		log.Debug().Str("path", opts.TokenFile).Msg("reusing token")
		tok = tf.token()
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", opts.TokenFile).Msg("could not load token file, will request new authorization")
	}

	// the client recorded in the token file, used only without a credentials file
	var client *oauth2.Config
	config, err := LoadConfig(opts.CredentialsFile, opts.Scopes...)
	if err != nil {
		if tf != nil {
			client = tf.config(opts.Scopes)
		}
		switch {
		case client != nil:
			log.Warn().Err(err).Str("path", opts.TokenFile).Msg("using the oauth client recorded in the token file")
			config = client
		case tok != nil && tok.Valid():
			// without a client we cannot refresh, but a live token is still usable
			log.Warn().Err(err).Msg("using saved token without the ability to refresh it")
			return oauth2.StaticTokenSource(tok), nil
		default:
			return nil, err
		}
	}

	fallback := &fallbackTokenSource{
		flow: browserFlow{ctx: ctx, config: config},
		refresh: func(t *oauth2.Token) oauth2.TokenSource {
			return config.TokenSource(ctx, t)
		},
	}
	var last string
	if tok != nil {
		fallback.primary = config.TokenSource(ctx, tok)
		last = tok.AccessToken
	}

	return oauth2.ReuseTokenSource(nil, &savingTokenSource{
		src:    fallback,
		path:   opts.TokenFile,
		last:   last,
		client: client,
	}), nil
}

// Authenticate is like New but also obtains a token immediately, so that
// authentication problems are reported before any API call is made
func Authenticate(ctx context.Context, opts Options) (oauth2.TokenSource, error) {
	ts, err := New(ctx, opts)
	if err != nil {
		return nil, err
	}

	_, err = ts.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	return ts, nil
}
