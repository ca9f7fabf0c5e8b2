// Package auth runs the OAuth2 installed-application flow for Google Drive
// and keeps the resulting token on disk.
package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Debug controls verbose logging
var Debug bool

// debugLog prints a log message only if Debug is true
func debugLog(format string, v ...interface{}) {
	if Debug {
		log.Printf(format, v...)
	}
}

// ErrMissingCredentials is returned when the OAuth client credentials file does not exist
var ErrMissingCredentials = errors.New("credentials file does not exist")

const authorizePrompt = "Open the following URL in the browser and enter the resulting code after authorization. " +
	"The program can only access files made by it, your other files will not be seen."

// Authorizer obtains OAuth2 tokens for a single user and stores them in a file
type Authorizer struct {
	config    *oauth2.Config
	tokenFile string

	// In supplies the authorization code on first run
	In io.Reader
	// Out receives the authorization URL and prompt
	Out io.Writer
}

// NewAuthorizer creates an authorizer from a Google client credentials JSON file.
// A non-empty redirectURL overrides the first redirect URI of the file.
func NewAuthorizer(credentialsFile, tokenFile, redirectURL string, scopes ...string) (*Authorizer, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrMissingCredentials, err)
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file %s: %w", credentialsFile, err)
	}
	if redirectURL != "" {
		config.RedirectURL = redirectURL
	}

	return NewAuthorizerFromConfig(config, tokenFile), nil
}

// NewAuthorizerFromConfig creates an authorizer for an existing OAuth2 config
func NewAuthorizerFromConfig(config *oauth2.Config, tokenFile string) *Authorizer {
	return &Authorizer{
		config:    config,
		tokenFile: tokenFile,
		In:        os.Stdin,
		Out:       os.Stdout,
	}
}

// Token returns the stored token, running the authorization flow when none exists
func (a *Authorizer) Token(ctx context.Context) (*oauth2.Token, error) {
	tok, err := LoadToken(a.tokenFile)
	if err == nil {
		debugLog("Loaded token from %s", a.tokenFile)
		return tok, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	debugLog("No token at %s, starting authorization", a.tokenFile)
	return a.Authorize(ctx)
}

// Authorize prints the authorization URL, reads the resulting code from In,
// exchanges it for a token and saves the token.
func (a *Authorizer) Authorize(ctx context.Context) (*oauth2.Token, error) {
	url := a.config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)

	fmt.Fprintln(a.Out, authorizePrompt)
	fmt.Fprintln(a.Out)
	fmt.Fprintln(a.Out, url)
	fmt.Fprintln(a.Out)
	fmt.Fprint(a.Out, "Authorization code: ")

	line, err := readLine(ctx, a.In)
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return nil, fmt.Errorf("failed to read authorization code: %w", err)
	}
	code := strings.TrimSpace(line)
	if code == "" {
		return nil, errors.New("authorization code is empty")
	}

	tok, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	if err := SaveToken(a.tokenFile, tok); err != nil {
		return nil, err
	}
	debugLog("Token saved to %s", a.tokenFile)
	return tok, nil
}

type lineResult struct {
	line string
	err  error
}

// readLine reads one line from r, returning early with ctx.Err() once ctx is done
func readLine(ctx context.Context, r io.Reader) (string, error) {
	done := make(chan lineResult, 1)
	go func() {
		line, err := bufio.NewReader(r).ReadString('\n')
		done <- lineResult{line: line, err: err}
	}()

	select {
	case res := <-done:
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Client returns an HTTP client that authorizes requests and writes refreshed
// tokens back to the token file.
func (a *Authorizer) Client(ctx context.Context) (*http.Client, error) {
	tok, err := a.Token(ctx)
	if err != nil {
		return nil, err
	}

	src := &persistingTokenSource{
		base: a.config.TokenSource(ctx, tok),
		path: a.tokenFile,
		last: tok,
	}
	return oauth2.NewClient(ctx, src), nil
}

// persistingTokenSource saves every token that differs from the last one seen
type persistingTokenSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last != nil && s.last.AccessToken == tok.AccessToken {
		return tok, nil
	}

	debugLog("Token refreshed, saving to %s", s.path)
	if err := SaveToken(s.path, tok); err != nil {
		return nil, err
	}
	s.last = tok
	return tok, nil
}
