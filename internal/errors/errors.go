package gerr

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	SourceFetchFailure = status.Error(codes.Unavailable, "report source fetch failed")
	EmptyExportFailure = status.Error(codes.FailedPrecondition, "nothing to export")

	InvalidPeriod     = status.Error(codes.InvalidArgument, "invalid report period")
	InvalidFilter     = status.Error(codes.InvalidArgument, "invalid report filter")
	UnsupportedFormat = status.Error(codes.InvalidArgument, "unsupported export format")
	UnknownDelivery   = status.Error(codes.InvalidArgument, "unknown export delivery")
	UnknownTable      = status.Error(codes.InvalidArgument, "unknown change table")

	UnknownReport = status.Error(codes.NotFound, "report not found")
	NoSnapshot    = status.Error(codes.Unavailable, "metrics are not computed yet")

	DeliveryFailure = status.Error(codes.Internal, "export delivery failed")
	RateLimited     = status.Error(codes.ResourceExhausted, "too many export requests")
)
