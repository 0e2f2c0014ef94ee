// Package grpcutil holds the pieces shared by the gRPC server and its
// clients: the statgis.Analysis service description, the conversion between
// analysis types and protobuf Struct messages, and a typed client.
package grpcutil

import (
	"context"

	"github.com/chrissnell/statgis/internal/analysis"
	"github.com/chrissnell/statgis/internal/catalog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "statgis.Analysis"

// DatasetsResponse carries the catalog listing
type DatasetsResponse struct {
	Datasets []catalog.Info `json:"datasets"`
}

// AnalysisServer is implemented by the gRPC controller
type AnalysisServer interface {
	Datasets(context.Context) (*DatasetsResponse, error)
	Zonal(context.Context, *analysis.ZonalRequest) (*analysis.TableResponse, error)
	Decompose(context.Context, *analysis.DecomposeRequest) (*analysis.DecomposeResponse, error)
	Yearly(context.Context, *analysis.YearlyRequest) (*analysis.TableResponse, error)
	Hypsometric(context.Context, *analysis.HypsometricRequest) (*analysis.HypsometricResponse, error)
	Plume(context.Context, *analysis.PlumeRequest) (*analysis.PlumeResponse, error)
	Sample(context.Context, *analysis.SampleRequest) (*analysis.SampleResponse, error)
	WaterFrequency(context.Context, *analysis.FrequencyRequest) (*analysis.TableResponse, error)
}

// RegisterAnalysisServer registers srv with s
func RegisterAnalysisServer(s grpc.ServiceRegistrar, srv AnalysisServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// FullMethod returns the "/service/method" path of a method
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// serve runs handler through the interceptor, if any, and encodes its
// result as a Struct
func serve(ctx context.Context, srv any, method string, req any, interceptor grpc.UnaryServerInterceptor, handler grpc.UnaryHandler) (any, error) {
	var out any
	var err error
	if interceptor == nil {
		out, err = handler(ctx, req)
	} else {
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		out, err = interceptor(ctx, req, info, handler)
	}
	if err != nil {
		return nil, err
	}
	msg, err := ToStruct(out)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding %s response: %v", method, err)
	}
	return msg, nil
}

func unary[Req, Res any](method string, call func(AnalysisServer, context.Context, *Req) (*Res, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			msg := new(structpb.Struct)
			if err := dec(msg); err != nil {
				return nil, err
			}
			in := new(Req)
			if err := FromStruct(msg, in, true); err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "decoding %s request: %v", method, err)
			}
			return serve(ctx, srv, method, in, interceptor, func(ctx context.Context, req any) (any, error) {
				return call(srv.(AnalysisServer), ctx, req.(*Req))
			})
		},
	}
}

var datasetsMethod = grpc.MethodDesc{
	MethodName: "Datasets",
	Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		return serve(ctx, srv, "Datasets", in, interceptor, func(ctx context.Context, _ any) (any, error) {
			return srv.(AnalysisServer).Datasets(ctx)
		})
	},
}

// ServiceDesc describes statgis.Analysis as declared in statgis.proto
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AnalysisServer)(nil),
	Methods: []grpc.MethodDesc{
		datasetsMethod,
		unary("Zonal", AnalysisServer.Zonal),
		unary("Decompose", AnalysisServer.Decompose),
		unary("Yearly", AnalysisServer.Yearly),
		unary("Hypsometric", AnalysisServer.Hypsometric),
		unary("Plume", AnalysisServer.Plume),
		unary("Sample", AnalysisServer.Sample),
		unary("WaterFrequency", AnalysisServer.WaterFrequency),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "statgis.proto",
}
