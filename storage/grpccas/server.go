package grpccas

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/keyaudit/cidutil"
	"xdao.co/keyaudit/storage"
)

// Server exposes a storage.CAS as a BlockStore service.
type Server struct {
	UnimplementedBlockStoreServer
	CAS    storage.CAS
	Logger *slog.Logger
}

func (s *Server) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Server) Put(_ context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	if s == nil || s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing CAS")
	}
	b := in.GetValue()
	id, err := s.CAS.Put(b)
	if err != nil {
		s.logger().Error("put failed", "bytes", len(b), "error", err)
		return nil, toStatus(err)
	}
	if !cidutil.Verify(id, b) {
		return nil, toStatus(storage.ErrCIDMismatch)
	}
	s.logger().Debug("put", "cid", id.String(), "bytes", len(b))
	return wrapperspb.String(id.String()), nil
}

func (s *Server) Get(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing CAS")
	}
	id, err := cidutil.Parse(in.GetValue())
	if err != nil {
		return nil, toStatus(storage.ErrInvalidCID)
	}
	b, err := s.CAS.Get(id)
	if err != nil {
		return nil, toStatus(err)
	}
	if !cidutil.Verify(id, b) {
		s.logger().Warn("stored block does not match its cid", "cid", id.String())
		return nil, toStatus(storage.ErrCIDMismatch)
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Has(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if s == nil || s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing CAS")
	}
	id, err := cidutil.Parse(in.GetValue())
	if err != nil {
		return nil, toStatus(storage.ErrInvalidCID)
	}
	return wrapperspb.Bool(s.CAS.Has(id)), nil
}
