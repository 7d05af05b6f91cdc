package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// RemoteProbe reports status of artifacts published under a base URL.
// Age comes from the Last-Modified header of a HEAD request.
type RemoteProbe struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

// NewRemoteProbe creates a probe against baseURL. A nil client uses
// http.DefaultClient.
func NewRemoteProbe(baseURL string, client *http.Client, logger *slog.Logger) *RemoteProbe {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteProbe{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger.With(slog.String("component", "remote_probe")),
		now:     time.Now,
	}
}

// URL returns the address of a published artifact
func (p *RemoteProbe) URL(artifact Artifact) string {
	return remoteURL(p.baseURL, artifact)
}

// StatusOf implements StatusReader. Unpublished artifacts, 404s and
// transport errors all report Exists=false.
func (p *RemoteProbe) StatusOf(ctx context.Context, artifact Artifact) ArtifactStatus {
	st := p.head(ctx, artifact)
	st.Key = artifact.Key
	st.Name = artifact.Name
	return st
}

// StatusAll reports published artifacts only, in the given order
func (p *RemoteProbe) StatusAll(ctx context.Context, artifacts []Artifact) []ArtifactStatus {
	published := make([]Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		if a.Published() {
			published = append(published, a)
		}
	}
	return collect(ctx, p, published)
}

func (p *RemoteProbe) head(ctx context.Context, artifact Artifact) ArtifactStatus {
	if !artifact.Published() {
		st := missingStatus(artifact.Path)
		st.Error = "not published remotely"
		return st
	}

	url := p.URL(artifact)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		st := missingStatus(url)
		st.Error = err.Error()
		return st
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.WarnContext(ctx, "remote_probe_failed",
			slog.String("url", url),
			slog.String("error", err.Error()))
		st := missingStatus(url)
		st.Error = err.Error()
		return st
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return missingStatus(url)
	case resp.StatusCode >= 300:
		st := missingStatus(url)
		st.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return st
	}

	modified, err := http.ParseTime(resp.Header.Get("Last-Modified"))
	if err != nil {
		return ArtifactStatus{Path: url, Exists: true, Freshness: FreshnessUnknown}
	}
	return presentStatus(url, modified, p.now())
}

func remoteURL(base string, artifact Artifact) string {
	return base + "/" + strings.TrimLeft(artifact.Remote, "/")
}
