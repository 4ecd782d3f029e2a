package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/go-github/v58/github"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/oauth2"

	"gihan9a/filerelay/internal/utils"
	"gihan9a/filerelay/pkg/relayproto"
)

// GitHubOptions configures a GitHubStore
type GitHubOptions struct {
	Token   string
	APIURL  string        // empty means https://api.github.com/
	Timeout time.Duration // zero disables the client timeout
}

// GitHubStore is a FileStore backed by the GitHub contents API
type GitHubStore struct {
	client *github.Client
	logger log.Logger
}

// NewGitHubStore creates a GitHubStore authenticating every call with a
// static personal access token
func NewGitHubStore(opts GitHubOptions, logger log.Logger, reg prometheus.Registerer) (*GitHubStore, error) {
	if opts.Token == "" {
		return nil, errors.New("github: access token is required")
	}

	// The token source sits in front of the metrics transport so both
	// see the final request
	httpClient := &http.Client{
		Timeout: opts.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
			Base:   InstrumentedTransport(logger, reg, http.DefaultTransport),
		},
	}
	client := github.NewClient(httpClient)

	if opts.APIURL != "" {
		apiURL := opts.APIURL
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		baseURL, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("github: invalid API URL: %w", err)
		}
		client.BaseURL = baseURL
	}

	return &GitHubStore{
		client: client,
		logger: logger,
	}, nil
}

// Fetch reads the file and decodes its content
func (s *GitHubStore) Fetch(ctx context.Context, ref FileRef) (relayproto.FileSnapshot, error) {
	var opts *github.RepositoryContentGetOptions
	if ref.Branch != "" {
		opts = &github.RepositoryContentGetOptions{Ref: ref.Branch}
	}

	file, dir, _, err := s.client.Repositories.GetContents(ctx, ref.Owner, ref.Repo, strings.Trim(ref.Path, "/"), opts)
	if err != nil {
		if resp, message, ok := upstreamFailure(err); ok {
			return relayproto.FileSnapshot{}, newFetchError(resp, message)
		}
		return relayproto.FileSnapshot{}, fmt.Errorf("GitHub fetch failed: %w", err)
	}
	if file == nil {
		return relayproto.FileSnapshot{}, fmt.Errorf("GitHub fetch failed: %s is a directory with %d entries", ref, len(dir))
	}
	if file.Type != nil && *file.Type != "file" {
		return relayproto.FileSnapshot{}, fmt.Errorf("GitHub fetch failed: %s is a %s, not a file", ref, *file.Type)
	}
	if encoding := file.GetEncoding(); encoding != "" && encoding != "base64" {
		return relayproto.FileSnapshot{}, fmt.Errorf("GitHub fetch failed: unsupported content encoding %q", encoding)
	}

	content, err := DecodeContent(toString(file.Content))
	if err != nil {
		return relayproto.FileSnapshot{}, err
	}

	level.Debug(s.logger).Log("msg", "fetched file", "ref", ref, "sha", file.GetSHA(), "size", utils.HumanSize(len(content)))
	return relayproto.FileSnapshot{
		Content: content,
		SHA:     file.GetSHA(),
	}, nil
}

// contentsUpdate is the body of a create-or-update contents request
type contentsUpdate struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

// Update commits new content and returns the API response untouched
func (s *GitHubStore) Update(ctx context.Context, ref FileRef, req relayproto.UpdateRequest) (json.RawMessage, error) {
	body := &contentsUpdate{
		Message: CommitMessage,
		Content: EncodeContent(req.Content),
		SHA:     req.SHA,
		Branch:  ref.Branch,
	}

	httpReq, err := s.client.NewRequest(http.MethodPut, contentsPath(ref), body)
	if err != nil {
		return nil, fmt.Errorf("error creating update request: %w", err)
	}

	var result json.RawMessage
	if _, err := s.client.Do(ctx, httpReq, &result); err != nil {
		if resp, message, ok := upstreamFailure(err); ok {
			return nil, newUpdateError(resp, message)
		}
		return nil, fmt.Errorf("%s: %w", updateFailedMessage, err)
	}

	level.Debug(s.logger).Log("msg", "updated file", "ref", ref, "parent_sha", req.SHA, "size", utils.HumanSize(len(req.Content)))
	return result, nil
}

// contentsPath builds the API path for ref, relative to the client base URL
func contentsPath(ref FileRef) string {
	path := strings.Trim(ref.Path, "/")
	escapedPath := (&url.URL{Path: path}).String()
	return fmt.Sprintf("repos/%s/%s/contents/%s", ref.Owner, ref.Repo, escapedPath)
}

func toString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
