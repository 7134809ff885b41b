// Package registry exposes the DID registry over gRPC.
package registry

import (
	"context"
	"errors"

	apperrors "github.com/louisbranch/didregistry/internal/platform/errors"
	"github.com/louisbranch/didregistry/internal/platform/requestctx"
	"github.com/louisbranch/didregistry/internal/services/registry/core"
	"github.com/louisbranch/didregistry/internal/services/registry/event"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultListEventsPageSize = 50
	maxListEventsPageSize     = 500
	defaultWatchBuffer        = 64
)

// Registry is the registry core as seen by the transport.
type Registry interface {
	Create(ctx context.Context, id, contentAddress string, caller core.Principal) (core.Record, error)
	Update(ctx context.Context, id, contentAddress string, caller core.Principal) (core.Record, error)
	Revoke(ctx context.Context, id string, caller core.Principal) error
	Query(ctx context.Context, id string) (core.Record, error)
}

// EventLister reads the journal.
type EventLister interface {
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error)
}

// Subscriber hands out live event feeds.
type Subscriber interface {
	Subscribe(buffer int) (*event.Subscription, func())
}

// Service implements DIDRegistryServer.
type Service struct {
	registry    Registry
	events      EventLister
	feed        Subscriber
	watchBuffer int
}

// NewService creates a registry service.
func NewService(registry Registry, events EventLister, feed Subscriber) *Service {
	return &Service{
		registry:    registry,
		events:      events,
		feed:        feed,
		watchBuffer: defaultWatchBuffer,
	}
}

var _ DIDRegistryServer = (*Service)(nil)

// CreateDID registers an identifier owned by the authenticated caller.
func (s *Service) CreateDID(ctx context.Context, in *CreateDIDRequest) (*DIDResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "create did request is required")
	}
	if s == nil || s.registry == nil {
		return nil, status.Error(codes.Internal, "registry is not configured")
	}
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.registry.Create(ctx, in.DID, in.ContentAddress, caller)
	if err != nil {
		return nil, statusFromError(err)
	}
	return &DIDResponse{Record: recordToWire(rec)}, nil
}

// UpdateDID replaces the content address of an identifier the caller owns.
func (s *Service) UpdateDID(ctx context.Context, in *UpdateDIDRequest) (*DIDResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "update did request is required")
	}
	if s == nil || s.registry == nil {
		return nil, status.Error(codes.Internal, "registry is not configured")
	}
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.registry.Update(ctx, in.DID, in.ContentAddress, caller)
	if err != nil {
		return nil, statusFromError(err)
	}
	return &DIDResponse{Record: recordToWire(rec)}, nil
}

// RevokeDID removes an identifier the caller owns.
func (s *Service) RevokeDID(ctx context.Context, in *RevokeDIDRequest) (*RevokeDIDResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "revoke did request is required")
	}
	if s == nil || s.registry == nil {
		return nil, status.Error(codes.Internal, "registry is not configured")
	}
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.registry.Revoke(ctx, in.DID, caller); err != nil {
		return nil, statusFromError(err)
	}
	return &RevokeDIDResponse{DID: in.DID}, nil
}

// GetDID returns the live record for an identifier.
func (s *Service) GetDID(ctx context.Context, in *GetDIDRequest) (*DIDResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "get did request is required")
	}
	if s == nil || s.registry == nil {
		return nil, status.Error(codes.Internal, "registry is not configured")
	}
	rec, err := s.registry.Query(ctx, in.DID)
	if err != nil {
		return nil, statusFromError(err)
	}
	return &DIDResponse{Record: recordToWire(rec)}, nil
}

// ListEvents returns one page of journal events after AfterSeq.
func (s *Service) ListEvents(ctx context.Context, in *ListEventsRequest) (*ListEventsResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "list events request is required")
	}
	if s == nil || s.events == nil {
		return nil, status.Error(codes.Internal, "event journal is not configured")
	}
	if in.PageSize < 0 {
		return nil, status.Error(codes.InvalidArgument, "page size must not be negative")
	}
	pageSize := in.PageSize
	if pageSize == 0 {
		pageSize = defaultListEventsPageSize
	}
	if pageSize > maxListEventsPageSize {
		pageSize = maxListEventsPageSize
	}

	events, err := s.events.ListEvents(ctx, in.AfterSeq, pageSize)
	if err != nil {
		return nil, statusFromError(err)
	}
	next := in.AfterSeq
	if n := len(events); n > 0 {
		next = events[n-1].Seq
	}
	return &ListEventsResponse{Events: events, NextAfterSeq: next}, nil
}

// WatchEvents streams journal events after AfterSeq followed by live events.
// The live feed is subscribed before the journal catch-up so no event falls
// between the two; duplicates are dropped by seq.
func (s *Service) WatchEvents(in *WatchEventsRequest, stream WatchEventsServer) error {
	if in == nil {
		return status.Error(codes.InvalidArgument, "watch events request is required")
	}
	if s == nil || s.events == nil || s.feed == nil {
		return status.Error(codes.Internal, "event feed is not configured")
	}
	ctx := stream.Context()

	sub, cancel := s.feed.Subscribe(s.watchBuffer)
	defer cancel()

	last, err := s.catchUp(ctx, stream, in.AfterSeq, 0)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case evt, ok := <-sub.Events():
			if !ok {
				if errors.Is(sub.Err(), event.ErrSubscriberLagging) {
					return apperrors.New(apperrors.CodeSubscriberLagging, "watcher fell behind the event feed").ToGRPCStatus()
				}
				return nil
			}
			if evt.Seq <= last {
				continue
			}
			if evt.Seq > last+1 {
				if last, err = s.catchUp(ctx, stream, last, evt.Seq-1); err != nil {
					return err
				}
			}
			if err := stream.Send(&evt); err != nil {
				return err
			}
			last = evt.Seq
		}
	}
}

// catchUp sends journal events after last, up to and including until when
// until is non-zero. It returns the last seq sent.
func (s *Service) catchUp(ctx context.Context, stream WatchEventsServer, last, until uint64) (uint64, error) {
	for {
		events, err := s.events.ListEvents(ctx, last, maxListEventsPageSize)
		if err != nil {
			return last, statusFromError(err)
		}
		for i := range events {
			if until != 0 && events[i].Seq > until {
				return last, nil
			}
			if err := stream.Send(&events[i]); err != nil {
				return last, err
			}
			last = events[i].Seq
		}
		if len(events) < maxListEventsPageSize || (until != 0 && last >= until) {
			return last, nil
		}
	}
}

func requireCaller(ctx context.Context) (core.Principal, error) {
	caller, ok := requestctx.CallerFromContext(ctx)
	if !ok {
		return "", apperrors.New(apperrors.CodeCallerUnauthenticated, "bearer token is required").ToGRPCStatus()
	}
	return core.Principal(caller), nil
}

// statusFromError maps registry and infrastructure errors to gRPC statuses.
func statusFromError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) && domainErr.Code != apperrors.CodeUnknown {
		return domainErr.ToGRPCStatus()
	}
	return status.Errorf(codes.Internal, "registry: %v", err)
}
