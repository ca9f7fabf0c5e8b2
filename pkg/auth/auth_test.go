package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// tokenServer is a fake OAuth2 provider with a token endpoint and a protected resource
type tokenServer struct {
	mu        sync.Mutex
	exchanges int
	refreshes int
}

func (s *tokenServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.URL.Path {
	case "/token":
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := map[string]interface{}{
			"token_type": "Bearer",
			"expires_in": 3600,
		}
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			if r.PostForm.Get("code") != "good-code" {
				http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
				return
			}
			s.exchanges++
			resp["access_token"] = "first-access"
			resp["refresh_token"] = "the-refresh"
		case "refresh_token":
			s.refreshes++
			resp["access_token"] = "fresh-access"
		default:
			http.Error(w, `{"error":"unsupported_grant_type"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	case "/resource":
		w.Write([]byte(r.Header.Get("Authorization")))
	default:
		http.NotFound(w, r)
	}
}

func newTestAuthorizer(t *testing.T) (*Authorizer, *tokenServer, *httptest.Server) {
	t.Helper()

	fake := &tokenServer{}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	config := &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
		Scopes:       []string{"https://www.googleapis.com/auth/drive.file"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  server.URL + "/auth",
			TokenURL: server.URL + "/token",
		},
	}
	a := NewAuthorizerFromConfig(config, filepath.Join(t.TempDir(), "secure-gdrive", "token.yaml"))
	return a, fake, server
}

func TestNewAuthorizer_MissingCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	_, err := NewAuthorizer(path, filepath.Join(t.TempDir(), "token.yaml"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCredentials)

	var pathErr *fs.PathError
	require.True(t, errors.As(err, &pathErr))
	assert.Equal(t, path, pathErr.Path)
}

func TestNewAuthorizer_ParsesInstalledCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")
	creds := `{"installed":{"client_id":"abc.apps.googleusercontent.com","client_secret":"shh",` +
		`"redirect_uris":["urn:ietf:wg:oauth:2.0:oob","http://localhost"],` +
		`"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`
	require.NoError(t, os.WriteFile(path, []byte(creds), 0600))

	a, err := NewAuthorizer(path, filepath.Join(dir, "token.yaml"), "", "scope-a")
	require.NoError(t, err)
	assert.Equal(t, "abc.apps.googleusercontent.com", a.config.ClientID)
	assert.Equal(t, "urn:ietf:wg:oauth:2.0:oob", a.config.RedirectURL)
	assert.Equal(t, []string{"scope-a"}, a.config.Scopes)

	a, err = NewAuthorizer(path, filepath.Join(dir, "token.yaml"), "http://localhost:8085", "scope-a")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8085", a.config.RedirectURL)
}

func TestNewAuthorizer_InvalidCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0600))

	_, err := NewAuthorizer(path, filepath.Join(t.TempDir(), "token.yaml"), "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingCredentials)
}

func TestToken_FirstRunPromptsAndPersists(t *testing.T) {
	a, fake, _ := newTestAuthorizer(t)
	ctx := context.Background()

	var out bytes.Buffer
	a.In = strings.NewReader("  good-code \n")
	a.Out = &out

	tok, err := a.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first-access", tok.AccessToken)
	assert.Equal(t, "the-refresh", tok.RefreshToken)
	assert.Equal(t, 1, fake.exchanges)

	assert.Contains(t, out.String(), authorizePrompt)
	assert.Contains(t, out.String(), "access_type=offline")
	assert.Contains(t, out.String(), "client_id=client-id")
	assert.Contains(t, out.String(), "Authorization code: ")

	info, err := os.Stat(a.tokenFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// The second run reuses the stored token without prompting
	out.Reset()
	a.In = strings.NewReader("")
	tok, err = a.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first-access", tok.AccessToken)
	assert.Empty(t, out.String())
	assert.Equal(t, 1, fake.exchanges)
}

func TestToken_CodeWithoutNewline(t *testing.T) {
	a, _, _ := newTestAuthorizer(t)
	a.In = strings.NewReader("good-code")
	a.Out = &bytes.Buffer{}

	tok, err := a.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first-access", tok.AccessToken)
}

func TestToken_EmptyCode(t *testing.T) {
	a, fake, _ := newTestAuthorizer(t)
	a.In = strings.NewReader("\n")
	a.Out = &bytes.Buffer{}

	_, err := a.Token(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, fake.exchanges)
	assert.NoFileExists(t, a.tokenFile)
}

func TestToken_RejectedCode(t *testing.T) {
	a, _, _ := newTestAuthorizer(t)
	a.In = strings.NewReader("bad-code\n")
	a.Out = &bytes.Buffer{}

	_, err := a.Token(context.Background())
	require.Error(t, err)
	assert.NoFileExists(t, a.tokenFile)
}

func TestToken_CancelledWhileWaitingForCode(t *testing.T) {
	a, fake, _ := newTestAuthorizer(t)

	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })
	a.In = pr
	a.Out = &bytes.Buffer{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Token(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fake.exchanges)
	assert.NoFileExists(t, a.tokenFile)
}

func TestClient_PersistsRefreshedToken(t *testing.T) {
	a, fake, server := newTestAuthorizer(t)
	ctx := context.Background()

	require.NoError(t, SaveToken(a.tokenFile, &oauth2.Token{
		AccessToken:  "stale-access",
		TokenType:    "Bearer",
		RefreshToken: "the-refresh",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	client, err := a.Client(ctx)
	require.NoError(t, err)

	resp, err := client.Get(server.URL + "/resource")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Bearer fresh-access", body.String())
	assert.Equal(t, 1, fake.refreshes)

	stored, err := LoadToken(a.tokenFile)
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", stored.AccessToken)
	assert.Equal(t, "the-refresh", stored.RefreshToken)
	assert.True(t, stored.Expiry.After(time.Now()))
}

func TestLoadToken_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadToken(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("token_type: Bearer\n"), 0600))
	_, err = LoadToken(empty)
	assert.Error(t, err)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("access_token: [unterminated"), 0600))
	_, err = LoadToken(broken)
	assert.Error(t, err)
}

func TestSaveToken_TightensExistingPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.yaml")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	require.NoError(t, SaveToken(path, &oauth2.Token{AccessToken: "a"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
