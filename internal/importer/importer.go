// Package importer creates issue drafts in Linear, one at a time and in order,
// reporting each outcome to progress observers as soon as it is known.
package importer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/ticketdrop/ticketdrop/internal/linear"
	"github.com/ticketdrop/ticketdrop/internal/telemetry"
	"github.com/ticketdrop/ticketdrop/internal/types"
)

const scopeName = "github.com/ticketdrop/ticketdrop/importer"

// Remote is the slice of the Linear API the orchestrator needs.
type Remote interface {
	ViewerTeam(ctx context.Context) (*types.RemoteTeam, error)
	CreateIssue(ctx context.Context, teamID, title, description string) (*linear.Issue, error)
}

// RemoteFactory builds a Remote acting on behalf of one access token.
type RemoteFactory func(accessToken string) Remote

// LinearRemote returns a factory for real Linear clients. Empty endpoint and
// nil client keep the linear package defaults.
func LinearRemote(endpoint string, hc *http.Client) RemoteFactory {
	return func(accessToken string) Remote {
		c := linear.NewClient(accessToken)
		if endpoint != "" {
			c = c.WithEndpoint(endpoint)
		}
		if hc != nil {
			c = c.WithHTTPClient(hc)
		}
		return c
	}
}

// Orchestrator runs imports. It holds no per-import state, so one value can
// serve concurrent imports for different credentials.
type Orchestrator struct {
	newRemote RemoteFactory
}

// New creates an orchestrator. A nil factory uses LinearRemote defaults.
func New(newRemote RemoteFactory) *Orchestrator {
	if newRemote == nil {
		newRemote = LinearRemote("", nil)
	}
	importMetricsOnce.Do(initImportMetrics)
	return &Orchestrator{newRemote: newRemote}
}

var importMetrics struct {
	issues metric.Int64Counter
}

var importMetricsOnce sync.Once

func initImportMetrics() {
	m := telemetry.Meter(scopeName)
	importMetrics.issues, _ = m.Int64Counter("td.import.issues",
		metric.WithDescription("Issues submitted to Linear, by outcome"),
		metric.WithUnit("{issue}"),
	)
}

// ImportAll creates every draft of snapshot in the viewer's first team.
//
// Drafts are created sequentially in collection order; a failed draft is
// recorded and the loop moves on. There is no dedup and no retry: importing
// the same snapshot twice creates every issue twice.
//
// When the team cannot be resolved nothing is created and the error is a
// *types.TeamResolutionFailure. Otherwise the returned summary is complete and
// summary.Err() reports any per-item failures.
func (o *Orchestrator) ImportAll(ctx context.Context, accessToken string, snapshot types.IssueDraftCollection, observers ...Observer) (*types.ImportSummary, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, &types.ValidationError{Field: "accessToken", Message: "access token is required"}
	}
	// The caller may keep editing its store.
	snapshot = snapshot.Clone()

	ctx, span := telemetry.Tracer(scopeName).Start(ctx, "import.all")
	defer span.End()
	span.SetAttributes(attribute.Int("td.import.total", snapshot.Len()))

	d := newDispatcher(observers)
	defer d.close()

	summary := &types.ImportSummary{Total: snapshot.Len(), Results: make([]types.ImportResult, 0, snapshot.Len())}
	if snapshot.Len() == 0 {
		d.publish(Event{Kind: EventComplete, Summary: summary})
		return summary, nil
	}

	remote := o.newRemote(accessToken)

	team, err := remote.ViewerTeam(ctx)
	if err != nil || team == nil || team.ID == "" {
		failure := &types.TeamResolutionFailure{Err: err}
		span.RecordError(failure)
		span.SetStatus(codes.Error, "team resolution failed")
		d.publish(Event{Kind: EventError, Err: failure})
		return nil, failure
	}
	summary.Team = *team
	span.SetAttributes(attribute.String("td.import.team", team.Name))
	d.publish(Event{Kind: EventTeam, Team: team})

	for i, draft := range snapshot.Issues {
		result := o.createOne(ctx, remote, team.ID, i, draft)
		summary.Record(result)
		d.publish(Event{Kind: EventResult, Index: i, Result: &result})
	}

	span.SetAttributes(
		attribute.Int("td.import.created", summary.Created),
		attribute.Int("td.import.failed", summary.Failed),
	)
	if summary.Failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d issues failed", summary.Failed, summary.Total))
	}
	d.publish(Event{Kind: EventComplete, Summary: summary})
	return summary, nil
}

func (o *Orchestrator) createOne(ctx context.Context, remote Remote, teamID string, index int, draft types.IssueDraft) types.ImportResult {
	ctx, span := telemetry.Tracer(scopeName).Start(ctx, "import.issue")
	defer span.End()
	span.SetAttributes(attribute.Int("td.import.index", index))

	var result types.ImportResult
	issue, err := remote.CreateIssue(ctx, teamID, draft.Title, draft.Description)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		result = types.Failed(draft.Title, err.Error())
	case issue == nil:
		result = types.Failed(draft.Title, linear.ErrCreateUnsuccessful.Error())
	default:
		result = types.Created(issue.Identifier, draft.Title)
		result.URL = issue.URL
		span.SetAttributes(attribute.String("td.import.identifier", issue.Identifier))
	}

	if importMetrics.issues != nil {
		importMetrics.issues.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(result.Status))))
	}
	return result
}
