// Package restserver serves the analysis service over HTTP.
package restserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/chrissnell/statgis/internal/analysis"
	"github.com/chrissnell/statgis/internal/constants"
	"github.com/chrissnell/statgis/internal/log"
	"github.com/chrissnell/statgis/pkg/config"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.ServerData
	Server     http.Server
	service    *analysis.Service
	logger     *zap.SugaredLogger
	handlers   *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.ServerData, service *analysis.Service, logger *zap.SugaredLogger) (*Controller, error) {
	if service == nil {
		return nil, fmt.Errorf("REST server needs an analysis service")
	}

	ctrl := &Controller{
		ctx:     ctx,
		wg:      wg,
		service: service,
		logger:  logger,
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if rc.ListenAddr == "" {
		logger.Infof("rest.listen_addr not provided; defaulting to %s (all interfaces)", constants.DefaultListenAddr)
		rc.ListenAddr = constants.DefaultListenAddr
	}

	if rc.Port == 0 {
		logger.Infof("rest.port not provided; defaulting to %d", constants.DefaultRESTPort)
		rc.Port = constants.DefaultRESTPort
	}
	ctrl.restConfig = rc

	ctrl.handlers = NewHandlers(ctrl)
	ctrl.Server.Addr = Addr(rc)
	ctrl.Server.Handler = ctrl.setupRouter()

	return ctrl, nil
}

// Addr returns the listen address of a server configuration
func Addr(sc config.ServerData) string {
	return net.JoinHostPort(sc.ListenAddr, fmt.Sprint(sc.Port))
}

// UsesTLS reports whether a certificate and key are configured
func (c *Controller) UsesTLS() bool {
	return c.restConfig.Cert != "" && c.restConfig.Key != ""
}

// Handler returns the router, for serving on a listener the controller does
// not own
func (c *Controller) Handler() http.Handler {
	return c.Server.Handler
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	log.Info("Starting REST server controller...")
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		log.Infof("REST server listening on %s", c.Server.Addr)
		if c.UsesTLS() {
			if err := c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// Serve serves on l until the controller context ends. It is used when the
// listener is shared with the gRPC server.
func (c *Controller) Serve(l net.Listener) error {
	go func() {
		<-c.ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	if err := c.Server.Serve(l); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware)

	router.HandleFunc("/datasets", c.handlers.GetDatasets).Methods(http.MethodGet)
	router.HandleFunc("/datasets/{name}/zonal", c.handlers.PostZonal).Methods(http.MethodPost)
	router.HandleFunc("/datasets/{name}/timeseries", c.handlers.PostTimeseries).Methods(http.MethodPost)
	router.HandleFunc("/datasets/{name}/yearly", c.handlers.PostYearly).Methods(http.MethodPost)
	router.HandleFunc("/datasets/{name}/sample", c.handlers.PostSample).Methods(http.MethodPost)
	router.HandleFunc("/datasets/{name}/hypsometric", c.handlers.PostHypsometric).Methods(http.MethodPost)
	router.HandleFunc("/datasets/{name}/plume", c.handlers.PostPlume).Methods(http.MethodPost)
	router.HandleFunc("/datasets/{name}/water-frequency", c.handlers.PostWaterFrequency).Methods(http.MethodPost)

	router.HandleFunc("/runs", c.handlers.GetRuns).Methods(http.MethodGet)
	router.HandleFunc("/runs/{id}", c.handlers.GetRun).Methods(http.MethodGet)

	router.HandleFunc("/debug/requests", c.handlers.GetRequestLog).Methods(http.MethodGet)
	router.HandleFunc("/version", c.handlers.GetVersion).Methods(http.MethodGet)

	return router
}
