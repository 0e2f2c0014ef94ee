// Package grpcserver serves the analysis service over gRPC.
package grpcserver

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/chrissnell/statgis/internal/analysis"
	"github.com/chrissnell/statgis/internal/constants"
	"github.com/chrissnell/statgis/internal/grpcutil"
	"github.com/chrissnell/statgis/internal/log"
	"github.com/chrissnell/statgis/pkg/config"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"
)

// Controller represents the gRPC controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	Server     *grpc.Server
	GRPCConfig config.ServerData
	service    *analysis.Service
	logger     *zap.SugaredLogger
}

// NewController creates a new gRPC controller instance
func NewController(ctx context.Context, wg *sync.WaitGroup, gc config.ServerData, service *analysis.Service, logger *zap.SugaredLogger) (*Controller, error) {
	if service == nil {
		return nil, fmt.Errorf("gRPC controller needs an analysis service")
	}
	if gc.ListenAddr == "" {
		gc.ListenAddr = constants.DefaultListenAddr
	}
	if gc.Port == 0 {
		logger.Infof("grpc.port not provided; defaulting to %d", constants.DefaultGRPCPort)
		gc.Port = constants.DefaultGRPCPort
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		GRPCConfig: gc,
		service:    service,
		logger:     logger,
	}

	opts := []grpc.ServerOption{grpc.UnaryInterceptor(ctrl.logCalls)}

	// Create gRPC server with optional TLS
	if gc.Cert != "" && gc.Key != "" {
		creds, err := credentials.NewServerTLSFromFile(gc.Cert, gc.Key)
		if err != nil {
			return nil, fmt.Errorf("could not create TLS server from keypair: %v", err)
		}
		opts = append(opts, grpc.Creds(creds))
	}
	ctrl.Server = grpc.NewServer(opts...)

	grpcutil.RegisterAnalysisServer(ctrl.Server, ctrl)

	return ctrl, nil
}

// Addr returns the listen address
func (c *Controller) Addr() string {
	return net.JoinHostPort(c.GRPCConfig.ListenAddr, fmt.Sprint(c.GRPCConfig.Port))
}

// StartController starts the gRPC controller
func (c *Controller) StartController() error {
	log.Info("Starting gRPC controller...")

	listenAddr := c.Addr()
	l, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("gRPC controller could not create listener: %v", err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		log.Infof("gRPC controller listening on %s", listenAddr)
		if err := c.Serve(l); err != nil {
			log.Errorf("gRPC controller serve error: %v", err)
		}
	}()

	return nil
}

// Serve serves on l and stops gracefully when the controller context ends
func (c *Controller) Serve(l net.Listener) error {
	go func() {
		<-c.ctx.Done()
		c.StopController()
	}()
	return c.Server.Serve(l)
}

// StopController stops the gRPC controller
func (c *Controller) StopController() {
	log.Info("Stopping gRPC controller...")
	if c.Server != nil {
		c.Server.GracefulStop()
	}
}

// logCalls bounds every call by the analysis timeout, logs it and converts
// service errors to gRPC statuses
func (c *Controller) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	ctx, cancel := c.service.WithTimeout(ctx)
	defer cancel()
	resp, err := handler(ctx, req)
	if err != nil {
		err = toStatus(err)
		c.logger.Debugw("grpc call failed", "method", info.FullMethod, "code", status.Code(err), "error", err)
		return nil, err
	}
	c.logger.Debugw("grpc call", "method", info.FullMethod, "duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

// Code maps a service error to its gRPC code
func Code(err error) codes.Code {
	switch analysis.Classify(err) {
	case analysis.KindInvalid:
		return codes.InvalidArgument
	case analysis.KindNotFound:
		return codes.NotFound
	case analysis.KindUnprocessable:
		return codes.FailedPrecondition
	case analysis.KindTimeout:
		return codes.DeadlineExceeded
	case analysis.KindUnavailable:
		return codes.Unavailable
	}
	return codes.Internal
}

func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(Code(err), err.Error())
}
