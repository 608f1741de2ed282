package youtube

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"

	"ai-shorts-factory/internal/config"
	"ai-shorts-factory/internal/httpclient"
)

var scopes = []string{youtube.YoutubeUploadScope, youtube.YoutubeScope}

// OAuthConfig reads the installed-app client from client_secrets.json, falling
// back to YOUTUBE_CLIENT_ID/YOUTUBE_CLIENT_SECRET.
func OAuthConfig(cfg config.PublishConfig) (*oauth2.Config, error) {
	if cfg.ClientSecretsFile != "" {
		b, err := os.ReadFile(cfg.ClientSecretsFile)
		switch {
		case err == nil:
			oc, err := google.ConfigFromJSON(b, scopes...)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", cfg.ClientSecretsFile, err)
			}
			return oc, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, &httpclient.CredentialError{Name: "YOUTUBE_CLIENT_ID/YOUTUBE_CLIENT_SECRET"}
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  "http://localhost",
		Scopes:       scopes,
	}, nil
}

// LoadToken reads a saved token. Group or world readable files are tightened
// to 0600 first.
func LoadToken(path string) (*oauth2.Token, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.Mode().Perm()&0o077 != 0 {
		if err := os.Chmod(path, 0o600); err != nil {
			return nil, err
		}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("parse token %s: %w", path, err)
	}
	return &tok, nil
}

// SaveToken writes tok readable by the owner only.
func SaveToken(path string, tok *oauth2.Token) error {
	b, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// TokenSource prefers the saved token file and falls back to a refresh token
// from the environment. Refreshed tokens are written back to the token file.
func TokenSource(ctx context.Context, cfg config.PublishConfig, log *zap.Logger) (oauth2.TokenSource, error) {
	oc, err := OAuthConfig(cfg)
	if err != nil {
		return nil, err
	}

	tok, err := LoadToken(cfg.TokenFile)
	switch {
	case err == nil:
		log.Debug("using saved token", zap.String("file", cfg.TokenFile))
	case cfg.RefreshToken != "":
		// expired on purpose so the first call refreshes
		tok = &oauth2.Token{RefreshToken: cfg.RefreshToken, Expiry: time.Now().Add(-time.Hour)}
	case errors.Is(err, fs.ErrNotExist):
		return nil, &httpclient.CredentialError{Name: "YOUTUBE_REFRESH_TOKEN"}
	default:
		return nil, err
	}

	return &persistingSource{
		src:  oc.TokenSource(ctx, tok),
		path: cfg.TokenFile,
		last: tok.AccessToken,
		log:  log,
	}, nil
}

type persistingSource struct {
	src  oauth2.TokenSource
	path string
	log  *zap.Logger

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last && s.path != "" {
		s.last = tok.AccessToken
		if err := SaveToken(s.path, tok); err != nil {
			s.log.Warn("could not save refreshed token", zap.Error(err))
		}
	}
	return tok, nil
}

// Authorize runs the console code flow: print the consent URL, read the code
// the user pastes back, exchange it and save the token.
func Authorize(ctx context.Context, cfg config.PublishConfig, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	oc, err := OAuthConfig(cfg)
	if err != nil {
		return nil, err
	}
	url := oc.AuthCodeURL("shortsfactory", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(out, "Open this URL in a browser and authorize access:\n\n%s\n\nPaste the authorization code: ", url)

	code, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("no authorization code entered")
	}

	tok, err := oc.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	if err := SaveToken(cfg.TokenFile, tok); err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Token saved to %s\n", cfg.TokenFile)
	return tok, nil
}
