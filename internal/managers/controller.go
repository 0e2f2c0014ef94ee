package managers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/chrissnell/statgis/internal/analysis"
	"github.com/chrissnell/statgis/internal/controllers/grpcserver"
	"github.com/chrissnell/statgis/internal/controllers/restserver"
	"github.com/chrissnell/statgis/pkg/config"
	"github.com/soheilhy/cmux"
	"go.uber.org/zap"
)

// ControllerManager interface for the controller manager
type ControllerManager interface {
	StartControllers() error
}

// Controller is an interface that provides standard methods for various controller backends
type Controller interface {
	StartController() error
}

// NewControllerManager creates a new controller manager
func NewControllerManager(ctx context.Context, wg *sync.WaitGroup, controllers []config.ControllerData, service *analysis.Service, logger *zap.SugaredLogger) (ControllerManager, error) {
	cm := &controllerManager{
		ctx:         ctx,
		wg:          wg,
		service:     service,
		logger:      logger,
		controllers: make([]Controller, 0),
	}

	var rests []*restserver.Controller
	var grpcs []*grpcserver.Controller

	// Create controllers based on configuration
	for _, con := range controllers {
		switch con.Type {
		case "restserver", "rest":
			ctrl, err := restserver.NewController(ctx, wg, serverData(con.RESTServer), service, logger)
			if err != nil {
				return nil, fmt.Errorf("error creating controller: %v", err)
			}
			rests = append(rests, ctrl)
		case "grpc":
			ctrl, err := grpcserver.NewController(ctx, wg, serverData(con.GRPCServer), service, logger)
			if err != nil {
				return nil, fmt.Errorf("error creating controller: %v", err)
			}
			grpcs = append(grpcs, ctrl)
		default:
			return nil, fmt.Errorf("unknown controller type: %s", con.Type)
		}
	}

	// A REST and a gRPC controller on the same address share one listener
	shared := map[*grpcserver.Controller]bool{}
	for _, rc := range rests {
		var match *grpcserver.Controller
		for _, gc := range grpcs {
			if !shared[gc] && gc.Addr() == rc.Server.Addr {
				match = gc
				break
			}
		}
		if match == nil {
			cm.controllers = append(cm.controllers, rc)
			continue
		}
		if rc.UsesTLS() || match.GRPCConfig.Cert != "" {
			return nil, fmt.Errorf("REST and gRPC controllers share %s; TLS is not supported on a shared listener", rc.Server.Addr)
		}
		shared[match] = true
		cm.controllers = append(cm.controllers, &multiplexedController{
			ctx:    ctx,
			wg:     wg,
			addr:   rc.Server.Addr,
			rest:   rc,
			grpc:   match,
			logger: logger,
		})
	}
	for _, gc := range grpcs {
		if !shared[gc] {
			cm.controllers = append(cm.controllers, gc)
		}
	}

	return cm, nil
}

func serverData(sd *config.ServerData) config.ServerData {
	if sd == nil {
		return config.ServerData{}
	}
	return *sd
}

type controllerManager struct {
	ctx         context.Context
	wg          *sync.WaitGroup
	service     *analysis.Service
	logger      *zap.SugaredLogger
	controllers []Controller
}

func (c *controllerManager) StartControllers() error {
	c.logger.Info("Starting controller manager...")

	for _, controller := range c.controllers {
		err := controller.StartController()
		if err != nil {
			return fmt.Errorf("error starting controller: %v", err)
		}
	}

	c.logger.Infof("Started %d controllers successfully", len(c.controllers))
	return nil
}

// multiplexedController serves REST and gRPC on one port, routing HTTP/2
// requests with a gRPC content type to the gRPC server
type multiplexedController struct {
	ctx    context.Context
	wg     *sync.WaitGroup
	addr   string
	rest   *restserver.Controller
	grpc   *grpcserver.Controller
	logger *zap.SugaredLogger
}

func (m *multiplexedController) StartController() error {
	l, err := net.Listen("tcp", m.addr)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %v", m.addr, err)
	}

	mux := cmux.New(l)
	grpcL := mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldPrefixSendSettings("content-type", "application/grpc"))
	httpL := mux.Match(cmux.Any())

	m.logger.Infof("REST and gRPC controllers listening on %s", m.addr)

	m.wg.Add(3)
	go func() {
		defer m.wg.Done()
		m.logServeError("gRPC", m.grpc.Serve(grpcL))
	}()
	go func() {
		defer m.wg.Done()
		m.logServeError("REST", m.rest.Serve(httpL))
	}()
	go func() {
		defer m.wg.Done()
		m.logServeError("listener", mux.Serve())
	}()

	go func() {
		<-m.ctx.Done()
		l.Close()
	}()

	return nil
}

func (m *multiplexedController) logServeError(name string, err error) {
	if err == nil || m.ctx.Err() != nil || errors.Is(err, cmux.ErrListenerClosed) || errors.Is(err, net.ErrClosed) {
		return
	}
	m.logger.Errorf("%s server on %s stopped: %v", name, m.addr, err)
}
