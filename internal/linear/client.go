// Package linear is a minimal client for the Linear GraphQL API covering what
// the importer needs: resolving the viewer's team and creating issues.
package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/ticketdrop/ticketdrop/internal/types"
)

const (
	// DefaultAPIEndpoint is the Linear GraphQL API endpoint.
	DefaultAPIEndpoint = "https://api.linear.app/graphql"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second
)

// Client talks to Linear on behalf of one OAuth access token.
// Clients are immutable; the With* methods return modified copies.
type Client struct {
	AccessToken string
	Endpoint    string
	HTTPClient  *http.Client
}

// NewClient creates a client for the given OAuth access token.
func NewClient(accessToken string) *Client {
	return &Client{
		AccessToken: accessToken,
		Endpoint:    DefaultAPIEndpoint,
		HTTPClient:  &http.Client{Timeout: DefaultTimeout},
	}
}

// WithEndpoint returns a copy of the client using a different API endpoint.
func (c *Client) WithEndpoint(endpoint string) *Client {
	cp := *c
	cp.Endpoint = endpoint
	return &cp
}

// WithHTTPClient returns a copy of the client using a different HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	cp := *c
	cp.HTTPClient = hc
	return &cp
}

// GraphQLRequest represents a GraphQL request payload.
type GraphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// GraphQLResponse represents a generic GraphQL response.
type GraphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// GraphQLError represents a GraphQL error.
type GraphQLError struct {
	Message    string   `json:"message"`
	Path       []string `json:"path,omitempty"`
	Extensions struct {
		Code string `json:"code,omitempty"`
	} `json:"extensions,omitempty"`
}

// Issue is the subset of a Linear issue returned by issueCreate.
type Issue struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"` // e.g., "TEAM-123"
	Title      string `json:"title"`
	URL        string `json:"url"`
}

// Team is a Linear team node.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ViewerTeamsResponse is the data payload of the viewer team query.
type ViewerTeamsResponse struct {
	Viewer struct {
		Teams struct {
			Nodes []Team `json:"nodes"`
		} `json:"teams"`
	} `json:"viewer"`
}

// IssueCreateResponse is the data payload of the issueCreate mutation.
type IssueCreateResponse struct {
	IssueCreate struct {
		Success bool   `json:"success"`
		Issue   *Issue `json:"issue"`
	} `json:"issueCreate"`
}

// ErrNoTeam is returned when the viewer belongs to no team.
var ErrNoTeam = errors.New("viewer has no teams")

// ErrCreateUnsuccessful is returned when issueCreate reports success=false.
var ErrCreateUnsuccessful = errors.New("issue creation reported as unsuccessful")

const viewerTeamsQuery = `
	query ViewerTeams {
		viewer {
			teams(first: 1) {
				nodes {
					id
					name
				}
			}
		}
	}
`

const issueCreateMutation = `
	mutation CreateIssue($input: IssueCreateInput!) {
		issueCreate(input: $input) {
			success
			issue {
				id
				identifier
				title
				url
			}
		}
	}
`

// Execute sends a GraphQL request. Requests are never retried; a failed call
// is reported to the caller as is. Non-2xx responses become
// *types.GatewayError with the status preserved.
func (c *Client) Execute(ctx context.Context, req *GraphQLRequest) (*GraphQLResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	(&oauth2.Token{AccessToken: c.AccessToken, TokenType: "Bearer"}).SetAuthHeader(httpReq)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, &types.GatewayError{Op: "linear", Err: errors.Wrap(err, "request failed")}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.GatewayError{Op: "linear", StatusCode: resp.StatusCode, Err: errors.Wrap(err, "failed to read response")}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &types.GatewayError{
			Op:         "linear",
			StatusCode: resp.StatusCode,
			Message:    "API error: " + strings.TrimSpace(string(respBody)),
		}
	}

	var gqlResp GraphQLResponse
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		return nil, errors.Wrapf(err, "failed to parse response (body: %s)", string(respBody))
	}

	if len(gqlResp.Errors) > 0 {
		errMsgs := make([]string, len(gqlResp.Errors))
		for i, e := range gqlResp.Errors {
			errMsgs[i] = e.Message
		}
		return nil, &types.GatewayError{
			Op:         "linear",
			StatusCode: resp.StatusCode,
			Message:    "GraphQL errors: " + strings.Join(errMsgs, "; "),
		}
	}

	return &gqlResp, nil
}

// ViewerTeam resolves the first team the authenticated user belongs to.
func (c *Client) ViewerTeam(ctx context.Context) (*types.RemoteTeam, error) {
	resp, err := c.Execute(ctx, &GraphQLRequest{Query: viewerTeamsQuery})
	if err != nil {
		return nil, errors.Wrap(err, "failed to query viewer teams")
	}

	var data ViewerTeamsResponse
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, errors.Wrap(err, "failed to parse viewer teams")
	}

	nodes := data.Viewer.Teams.Nodes
	if len(nodes) == 0 || nodes[0].ID == "" {
		return nil, ErrNoTeam
	}
	return &types.RemoteTeam{ID: nodes[0].ID, Name: nodes[0].Name}, nil
}

// CreateIssue creates one issue in the given team.
func (c *Client) CreateIssue(ctx context.Context, teamID, title, description string) (*Issue, error) {
	req := &GraphQLRequest{
		Query: issueCreateMutation,
		Variables: map[string]interface{}{
			"input": map[string]interface{}{
				"teamId":      teamID,
				"title":       title,
				"description": description,
			},
		},
	}

	resp, err := c.Execute(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create issue")
	}

	var data IssueCreateResponse
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, errors.Wrap(err, "failed to parse create response")
	}

	if !data.IssueCreate.Success || data.IssueCreate.Issue == nil {
		return nil, ErrCreateUnsuccessful
	}
	return data.IssueCreate.Issue, nil
}
