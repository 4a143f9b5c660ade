package osm

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/osmnode/pkg/tracing"
)

// Fetcher retrieves the raw XML document of a node. APIClient is the
// production implementation.
type Fetcher interface {
	FetchNodeXML(ctx context.Context, nodeID int64) (string, error)
}

// Service resolves OSM node ids into normalized Node records
type Service struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewService creates a Service backed by the given fetcher
func NewService(fetcher Fetcher) *Service {
	return &Service{
		fetcher: fetcher,
		logger:  slog.Default(),
	}
}

// SetLogger sets the logger for the service
func (s *Service) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// FetchNode downloads and parses a node. Fetch and parse failures never
// escape as-is: SentinelNodeID degrades to SentinelNode, every other id
// yields a *NodeNotFoundError.
func (s *Service) FetchNode(ctx context.Context, nodeID int64) (node *Node, err error) {
	ctx, span := tracing.StartSpan(ctx, "osm.fetch_node",
		trace.WithAttributes(attribute.Int64(tracing.AttrNodeID, nodeID)),
	)
	defer func() { tracing.EndSpan(span, err) }()

	logger := s.logger.With("node_id", nodeID)
	logger.Info("fetching osm node via osm api")

	body, err := s.fetcher.FetchNodeXML(ctx, nodeID)
	if err == nil {
		node, err = s.ParseNodeFromXML(&nodeID, body)
		if err == nil {
			span.SetAttributes(attribute.String(tracing.AttrNodeOutcome, tracing.OutcomeSuccess))
			notifyNodeResult(tracing.OutcomeSuccess)
			return node, nil
		}
	} else {
		err = newNotFound(nodeID, CauseFetch, err)
	}

	return s.fallback(ctx, nodeID, err)
}

func (s *Service) fallback(ctx context.Context, nodeID int64, cause error) (*Node, error) {
	logger := s.logger.With("node_id", nodeID, "cause", CauseOf(cause).String())

	if nodeID == SentinelNodeID {
		logger.Warn("failed to fetch node from osm api, falling back to built-in record", "error", cause)
		tracing.AddEvent(ctx, "fallback_fixture")
		tracing.SetAttributes(ctx, attribute.String(tracing.AttrNodeOutcome, tracing.OutcomeFallback))
		notifyNodeResult(tracing.OutcomeFallback)
		return SentinelNode(), nil
	}

	logger.Warn("failed to fetch node from osm api", "error", cause)
	tracing.SetAttributes(ctx,
		attribute.String(tracing.AttrNodeOutcome, tracing.OutcomeNotFound),
		attribute.String(tracing.AttrNodeCause, CauseOf(cause).String()),
	)
	notifyNodeResult(tracing.OutcomeNotFound)

	var nf *NodeNotFoundError
	if errors.As(cause, &nf) {
		return nil, nf
	}
	return nil, newNotFound(nodeID, CauseUnknown, cause)
}

// ParseNodeFromXML extracts a node from an OSM API document and maps its
// tags. A nil nodeID selects the first node in the document.
func (s *Service) ParseNodeFromXML(nodeID *int64, xmlText string) (*Node, error) {
	node, err := ParseNodeFromXML(nodeID, xmlText)
	if err != nil {
		cause := CauseOf(err)
		s.logger.Error("failed to parse osm xml", "cause", cause.String(), "error", err)
		notifyParseFailure(cause)
		return nil, err
	}
	return node, nil
}

// ParseNodeFromXML is the pure extract-and-map pipeline behind Service.ParseNodeFromXML
func ParseNodeFromXML(nodeID *int64, xmlText string) (*Node, error) {
	raw, err := ExtractNode(nodeID, xmlText)
	if err != nil {
		return nil, err
	}
	return MapTags(resolveID(raw.ID, nodeID), raw.Lat, raw.Lon, raw.Tags), nil
}

// resolveID prefers the document's id, then the caller's, then -1
func resolveID(parsed, requested *int64) int64 {
	switch {
	case parsed != nil:
		return *parsed
	case requested != nil:
		return *requested
	default:
		return -1
	}
}
