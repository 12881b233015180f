package vts

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"

	apperrors "github.com/voicerig/voicerig/internal/errors"
)

const (
	pluginName      = "VoiceRig"
	pluginDeveloper = "VoiceRig Project"

	// tokenApprovalTimeout covers the user clicking allow in the peer's UI
	// on first run.
	tokenApprovalTimeout = 60 * time.Second
)

// TokenStore persists the peer-issued authentication token across runs.
type TokenStore struct {
	fs   afero.Fs
	path string
}

// NewTokenStore stores the token at path on the OS filesystem.
func NewTokenStore(path string) *TokenStore {
	return NewTokenStoreFs(afero.NewOsFs(), path)
}

// NewTokenStoreFs stores the token at path on fs.
func NewTokenStoreFs(fs afero.Fs, path string) *TokenStore {
	return &TokenStore{fs: fs, path: path}
}

// Load returns the saved token, or "" when none has been issued yet.
func (t *TokenStore) Load() (string, error) {
	b, err := afero.ReadFile(t.fs, t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", apperrors.Wrap(err, apperrors.CodeConfig, "reading token file")
	}
	return strings.TrimSpace(string(b)), nil
}

// Save writes the token with owner-only permissions.
func (t *TokenStore) Save(token string) error {
	if err := afero.WriteFile(t.fs, t.path, []byte(token+"\n"), 0o600); err != nil {
		return apperrors.Wrap(err, apperrors.CodeConfig, "writing token file")
	}
	return nil
}

// Clear removes a token the peer no longer accepts.
func (t *TokenStore) Clear() error {
	if err := t.fs.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return apperrors.Wrap(err, apperrors.CodeConfig, "removing token file")
	}
	return nil
}

// Authenticate establishes plugin auth on the session. A saved token is
// tried first; when missing or rejected a fresh token is requested, which
// requires the user to approve the plugin in the peer's UI.
func (s *Session) Authenticate(ctx context.Context, store *TokenStore) error {
	token, err := store.Load()
	if err != nil {
		return err
	}

	if token != "" {
		ok, err := s.authenticateWith(ctx, token)
		if err != nil {
			return err
		}
		if ok {
			slog.Info("authenticated with saved token")
			return nil
		}
		slog.Warn("saved token rejected, requesting a new one")
		if err := store.Clear(); err != nil {
			return err
		}
	}

	token, err = s.requestToken(ctx)
	if err != nil {
		return err
	}
	if err := store.Save(token); err != nil {
		return err
	}

	ok, err := s.authenticateWith(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.New(apperrors.CodeRemote, "peer rejected freshly issued token")
	}
	slog.Info("authenticated with new token")
	return nil
}

func (s *Session) requestToken(ctx context.Context) (string, error) {
	slog.Info("requesting plugin token, approve the prompt on the peer")

	payload := authTokenRequestData{
		PluginName:      pluginName,
		PluginDeveloper: pluginDeveloper,
	}
	var resp authTokenResponseData
	err := s.requestWithTimeout(ctx, msgAuthTokenRequest, payload, &resp, tokenApprovalTimeout)
	if err != nil {
		return "", err
	}
	if resp.AuthenticationToken == "" {
		return "", apperrors.New(apperrors.CodeRemote, "peer returned empty token")
	}
	return resp.AuthenticationToken, nil
}

func (s *Session) authenticateWith(ctx context.Context, token string) (bool, error) {
	payload := authRequestData{
		PluginName:          pluginName,
		PluginDeveloper:     pluginDeveloper,
		AuthenticationToken: token,
	}
	var resp authResponseData
	if err := s.request(ctx, msgAuthRequest, payload, &resp); err != nil {
		// A rejected token comes back as an APIError on some hosts.
		if apperrors.IsCode(err, apperrors.CodeRemote) {
			return false, nil
		}
		return false, err
	}
	if !resp.Authenticated {
		slog.Debug("authentication declined", "reason", resp.Reason)
	}
	return resp.Authenticated, nil
}
