package grpcutil

import (
	"context"

	"github.com/chrissnell/statgis/internal/analysis"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a remote statgis.Analysis service
type Client struct {
	conn *grpc.ClientConn
}

// NewClient connects to target. Callers supply transport credentials.
func NewClient(target string, opts ...grpc.DialOption) (*Client, error) {
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}

func decode[Res any](out *structpb.Struct) (*Res, error) {
	res := new(Res)
	if err := FromStruct(out, res, false); err != nil {
		return nil, err
	}
	return res, nil
}

func invoke[Res any](ctx context.Context, c *Client, method string, req any) (*Res, error) {
	in, err := ToStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FullMethod(method), in, out); err != nil {
		return nil, err
	}
	return decode[Res](out)
}

// Datasets lists the remote catalog
func (c *Client) Datasets(ctx context.Context) (*DatasetsResponse, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FullMethod("Datasets"), &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return decode[DatasetsResponse](out)
}

// Zonal runs zonal statistics remotely
func (c *Client) Zonal(ctx context.Context, req *analysis.ZonalRequest) (*analysis.TableResponse, error) {
	return invoke[analysis.TableResponse](ctx, c, "Zonal", req)
}

// Decompose runs the time-series decomposition remotely
func (c *Client) Decompose(ctx context.Context, req *analysis.DecomposeRequest) (*analysis.DecomposeResponse, error) {
	return invoke[analysis.DecomposeResponse](ctx, c, "Decompose", req)
}

// Yearly runs the per-year reduction remotely
func (c *Client) Yearly(ctx context.Context, req *analysis.YearlyRequest) (*analysis.TableResponse, error) {
	return invoke[analysis.TableResponse](ctx, c, "Yearly", req)
}

// Hypsometric computes a hypsometric curve remotely
func (c *Client) Hypsometric(ctx context.Context, req *analysis.HypsometricRequest) (*analysis.HypsometricResponse, error) {
	return invoke[analysis.HypsometricResponse](ctx, c, "Hypsometric", req)
}

// Plume characterizes a plume remotely
func (c *Client) Plume(ctx context.Context, req *analysis.PlumeRequest) (*analysis.PlumeResponse, error) {
	return invoke[analysis.PlumeResponse](ctx, c, "Plume", req)
}

// Sample samples pixels remotely
func (c *Client) Sample(ctx context.Context, req *analysis.SampleRequest) (*analysis.SampleResponse, error) {
	return invoke[analysis.SampleResponse](ctx, c, "Sample", req)
}

// WaterFrequency computes water frequency remotely
func (c *Client) WaterFrequency(ctx context.Context, req *analysis.FrequencyRequest) (*analysis.TableResponse, error) {
	return invoke[analysis.TableResponse](ctx, c, "WaterFrequency", req)
}
