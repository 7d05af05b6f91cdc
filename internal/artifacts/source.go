package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrArtifactMissing reports an artifact that has not been produced yet.
// Callers treat it as an empty state rather than a failure.
var ErrArtifactMissing = errors.New("artifact missing")

// Source opens artifact contents for the table loaders
type Source interface {
	Open(ctx context.Context, artifact Artifact) (io.ReadCloser, error)
	// Location describes where an artifact is read from
	Location(artifact Artifact) string
}

// LocalSource reads artifacts below a project root
type LocalSource struct {
	root string
}

// NewLocalSource creates a filesystem source
func NewLocalSource(root string) *LocalSource {
	return &LocalSource{root: root}
}

// Location implements Source
func (s *LocalSource) Location(artifact Artifact) string {
	if filepath.IsAbs(artifact.Path) {
		return artifact.Path
	}
	return filepath.Join(s.root, filepath.FromSlash(artifact.Path))
}

// Open implements Source
func (s *LocalSource) Open(_ context.Context, artifact Artifact) (io.ReadCloser, error) {
	path := s.Location(artifact)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", artifact.Name, ErrArtifactMissing)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// RemoteSource reads published artifacts over HTTP
type RemoteSource struct {
	baseURL string
	client  *http.Client
}

// NewRemoteSource creates an HTTP source. A nil client uses http.DefaultClient.
func NewRemoteSource(baseURL string, client *http.Client) *RemoteSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteSource{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Location implements Source
func (s *RemoteSource) Location(artifact Artifact) string {
	return remoteURL(s.baseURL, artifact)
}

// Open implements Source
func (s *RemoteSource) Open(ctx context.Context, artifact Artifact) (io.ReadCloser, error) {
	if !artifact.Published() {
		return nil, fmt.Errorf("%s is not published remotely: %w", artifact.Name, ErrArtifactMissing)
	}
	url := s.Location(artifact)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", artifact.Name, ErrArtifactMissing)
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}
