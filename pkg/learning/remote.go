package learning

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vulnflow/vulnflow/pkg/errors"
	"github.com/vulnflow/vulnflow/pkg/model"
	transport "github.com/vulnflow/vulnflow/pkg/transport/grpc"
)

// Service method names exposed by the central learning service.
const (
	methodLookup = "/vulnflow.learning.v1.LearningStore/Lookup"
	methodRecord = "/vulnflow.learning.v1.LearningStore/Record"
)

// jsonCodec marshals request/response messages as JSON. The learning
// service speaks JSON over gRPC so agents need no generated stubs.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)    { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                     { return "json" }

type lookupRequest struct {
	PatternSignature string `json:"pattern_signature"`
}

type recordRequest struct {
	Category              string  `json:"category"`
	PatternSignature      string  `json:"pattern_signature"`
	ResolutionTimeSeconds float64 `json:"resolution_time_seconds"`
	PatchTemplateRef      string  `json:"patch_template_ref,omitempty"`
}

type entryResponse struct {
	Entry *model.LearningEntry `json:"entry"`
}

// RemoteStore is a learning store backed by a central service over gRPC.
// Agents in a fleet share one store so a pattern learned by one agent
// speeds up every other.
type RemoteStore struct {
	transport *transport.Transport
}

// NewRemoteStore creates a remote learning store and connects the
// transport.
func NewRemoteStore(ctx context.Context, cfg *transport.Config) (*RemoteStore, error) {
	t := transport.NewTransport(cfg)
	if err := t.Connect(ctx); err != nil {
		return nil, errors.E(errors.KindNetwork, "learning.NewRemoteStore", "connect", err)
	}
	return &RemoteStore{transport: t}, nil
}

// Lookup fetches the entry for a pattern signature; (nil, nil) when the
// service has never seen it.
func (s *RemoteStore) Lookup(ctx context.Context, patternSignature string) (*model.LearningEntry, error) {
	const op = "learning.RemoteStore.Lookup"

	if patternSignature == "" {
		return nil, errors.E(errors.KindInvalidInput, op, "pattern signature is required")
	}

	var resp entryResponse
	err := s.invoke(ctx, methodLookup, &lookupRequest{PatternSignature: patternSignature}, &resp)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, errors.E(errors.KindNetwork, op, "lookup", err)
	}
	return resp.Entry, nil
}

// Record reports a resolved finding to the service, which folds it into
// the shared entry and returns the updated state.
func (s *RemoteStore) Record(ctx context.Context, category model.Category, patternSignature string, resolutionSeconds float64, templateRef string) (*model.LearningEntry, error) {
	const op = "learning.RemoteStore.Record"

	if patternSignature == "" {
		return nil, errors.E(errors.KindInvalidInput, op, "pattern signature is required")
	}

	req := &recordRequest{
		Category:              category.String(),
		PatternSignature:      patternSignature,
		ResolutionTimeSeconds: resolutionSeconds,
		PatchTemplateRef:      templateRef,
	}

	var resp entryResponse
	if err := s.invoke(ctx, methodRecord, req, &resp); err != nil {
		if status.Code(err) == codes.Aborted {
			return nil, errors.E(errors.KindLearningConflict, op, "concurrent update", err)
		}
		return nil, errors.E(errors.KindNetwork, op, "record", err)
	}
	if resp.Entry == nil {
		return nil, errors.E(errors.KindInternal, op, "service returned no entry")
	}
	return resp.Entry, nil
}

// Close closes the transport.
func (s *RemoteStore) Close() error {
	return s.transport.Close()
}

func (s *RemoteStore) invoke(ctx context.Context, method string, req, resp any) error {
	conn := s.transport.Conn()
	if conn == nil {
		return errors.ErrStoreClosed
	}
	return conn.Invoke(ctx, method, req, resp, grpc.ForceCodec(jsonCodec{}))
}

var _ Store = (*RemoteStore)(nil)
