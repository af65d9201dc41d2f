package gerrit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeffrom/custom-patches/config"
)

// xssiPrefix guards gerrit REST responses against cross-site script
// inclusion. It has to be stripped before decoding.
var xssiPrefix = []byte(")]}'")

// Client is a minimal gerrit REST client covering the read-only endpoints
// this tool needs: project listing, change queries, branch listing, and the
// server version. Authenticated requests go through the /a/ url prefix with
// basic auth, per the gerrit REST documentation.
type Client struct {
	cfg    config.Config
	remote Remote
	base   *url.URL
	hc     *http.Client
}

func NewClient(cfg config.Config, remote Remote) (*Client, error) {
	base, err := url.Parse(remote.Location)
	if err != nil {
		return nil, fmt.Errorf("gerrit: invalid location %q: %w", remote.Location, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("gerrit: location %q: project discovery needs an http(s) url", remote.Location)
	}
	return &Client{
		cfg:    cfg,
		remote: remote,
		base:   base,
		hc:     &http.Client{Timeout: time.Minute},
	}, nil
}

// ProjectInfo is the subset of gerrit's project description this tool reads.
// Branches maps branch names to their current revision.
type ProjectInfo struct {
	ID       string            `json:"id"`
	State    string            `json:"state"`
	Branches map[string]string `json:"branches"`
}

// HasBranches reports whether every named branch exists in the project.
func (p ProjectInfo) HasBranches(branches ...string) bool {
	for _, b := range branches {
		if _, ok := p.Branches[b]; !ok {
			return false
		}
	}
	return true
}

// ListProjects returns the projects whose name starts with prefix and which
// have at least one of the named branches. The branch filter runs server
// side; callers that need every branch present must narrow the result with
// ProjectInfo.HasBranches.
func (c *Client) ListProjects(ctx context.Context, prefix string, branches ...string) (map[string]ProjectInfo, error) {
	q := url.Values{}
	q.Set("p", prefix)
	for _, b := range branches {
		q.Add("b", b)
	}
	var infos map[string]ProjectInfo
	if err := c.get(ctx, "/projects/", q, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// ChangeInfo is the subset of gerrit's change description this tool reads.
type ChangeInfo struct {
	ID       string `json:"id"`
	Project  string `json:"project"`
	Branch   string `json:"branch"`
	ChangeID string `json:"change_id"`
}

// QueryChanges runs a change query, for example a bare commit hash, and
// returns the matching changes. An empty result is not an error.
func (c *Client) QueryChanges(ctx context.Context, query string) ([]ChangeInfo, error) {
	q := url.Values{}
	q.Set("q", query)
	var changes []ChangeInfo
	if err := c.get(ctx, "/changes/", q, &changes); err != nil {
		return nil, err
	}
	return changes, nil
}

// BranchInfo is one branch of a project, under its full ref name.
type BranchInfo struct {
	Ref      string `json:"ref"`
	Revision string `json:"revision"`
}

// ListBranches returns the branches of one project.
func (c *Client) ListBranches(ctx context.Context, project string) ([]BranchInfo, error) {
	var branches []BranchInfo
	if err := c.get(ctx, "/projects/"+url.PathEscape(project)+"/branches", nil, &branches); err != nil {
		return nil, err
	}
	return branches, nil
}

// Version returns the server's version string, for example "3.4.1".
func (c *Client) Version(ctx context.Context) (string, error) {
	var version string
	if err := c.get(ctx, "/config/server/version", nil, &version); err != nil {
		return "", err
	}
	return version, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := *c.base
	basePath := strings.TrimSuffix(u.Path, "/")
	if c.remote.Username != "" {
		basePath += "/a"
	}
	// path may contain escaped segments (project names embed %2F); RawPath
	// keeps them from being re-encoded.
	u.RawPath = basePath + path
	unescaped, err := url.PathUnescape(u.RawPath)
	if err != nil {
		return fmt.Errorf("gerrit: invalid path %q: %w", u.RawPath, err)
	}
	u.Path = unescaped
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	if c.remote.Username != "" {
		req.SetBasicAuth(c.remote.Username, c.remote.Password)
	}
	c.cfg.Debugf("GET %s", u.Redacted())

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("gerrit: GET %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return AuthError{URL: u.Redacted()}
	case resp.StatusCode == http.StatusNotFound:
		return NotFoundError{Ref: u.Redacted()}
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("gerrit: GET %s: unexpected status %s", u.Redacted(), resp.Status)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	b = bytes.TrimPrefix(b, xssiPrefix)
	b = bytes.TrimLeft(b, "\r\n")
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("gerrit: decode %s: %w", u.Redacted(), err)
	}
	return nil
}
