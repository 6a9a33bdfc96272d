package api

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"leihlokal/internal/domain"
	"leihlokal/internal/schedule"
	"leihlokal/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const scheduleServiceName = "leihlokal.schedule.v1.ScheduleService"

const (
	methodGetMonthGrid    = "/" + scheduleServiceName + "/GetMonthGrid"
	methodGetAvailability = "/" + scheduleServiceName + "/GetAvailability"
	methodListItems       = "/" + scheduleServiceName + "/ListItems"
)

// ScheduleServer is the read-only grid API. Messages are google.protobuf.Struct
// carrying the same JSON documents as the HTTP API.
type ScheduleServer interface {
	GetMonthGrid(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListItems(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func RegisterScheduleServer(s grpc.ServiceRegistrar, srv ScheduleServer) {
	s.RegisterService(&scheduleServiceDesc, srv)
}

var scheduleServiceDesc = grpc.ServiceDesc{
	ServiceName: scheduleServiceName,
	HandlerType: (*ScheduleServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetMonthGrid", Handler: unaryHandler(methodGetMonthGrid, ScheduleServer.GetMonthGrid)},
		{MethodName: "GetAvailability", Handler: unaryHandler(methodGetAvailability, ScheduleServer.GetAvailability)},
		{MethodName: "ListItems", Handler: unaryHandler(methodListItems, ScheduleServer.ListItems)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "leihlokal/schedule/v1/schedule.proto",
}

type scheduleMethod func(ScheduleServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call scheduleMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ScheduleServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ScheduleServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ScheduleService serves ScheduleServer from the grid and item services.
type ScheduleService struct {
	grid  *service.GridService
	items *service.ItemService
}

var _ ScheduleServer = (*ScheduleService)(nil)

func NewScheduleService(grid *service.GridService, items *service.ItemService) *ScheduleService {
	return &ScheduleService{grid: grid, items: items}
}

func (s *ScheduleService) GetMonthGrid(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	month, err := monthField(req)
	if err != nil {
		return nil, err
	}
	return toStruct(s.grid.Month(ctx, month))
}

func (s *ScheduleService) GetAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	itemID := stringField(req, "item_id")
	if itemID == "" {
		return nil, status.Error(codes.InvalidArgument, "item_id is required")
	}
	month, err := monthField(req)
	if err != nil {
		return nil, err
	}
	avail, err := s.grid.Availability(ctx, itemID, month)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"items": avail})
}

func (s *ScheduleService) ListItems(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	items, err := s.items.GetActiveItems(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"items": items})
}

func stringField(req *structpb.Struct, name string) string {
	if req == nil {
		return ""
	}
	return req.GetFields()[name].GetStringValue()
}

func monthField(req *structpb.Struct) (m time.Time, err error) {
	raw := stringField(req, "month")
	if raw == "" {
		return time.Time{}, status.Error(codes.InvalidArgument, "month is required")
	}
	m, err = schedule.ParseMonth(raw)
	if err != nil {
		return time.Time{}, status.Error(codes.InvalidArgument, err.Error())
	}
	return m, nil
}

// toStruct converts v through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrCollectionNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// ScheduleClient calls ScheduleServer over a client connection.
type ScheduleClient struct {
	cc grpc.ClientConnInterface
}

func NewScheduleClient(cc grpc.ClientConnInterface) *ScheduleClient {
	return &ScheduleClient{cc: cc}
}

func (c *ScheduleClient) call(ctx context.Context, method string, args map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(args)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ScheduleClient) GetMonthGrid(ctx context.Context, month string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, methodGetMonthGrid, map[string]any{"month": month}, opts...)
}

func (c *ScheduleClient) GetAvailability(ctx context.Context, itemID, month string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, methodGetAvailability, map[string]any{"item_id": itemID, "month": month}, opts...)
}

func (c *ScheduleClient) ListItems(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, methodListItems, map[string]any{}, opts...)
}
