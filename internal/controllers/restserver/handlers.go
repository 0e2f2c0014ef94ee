package restserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/chrissnell/statgis/internal/analysis"
	"github.com/chrissnell/statgis/internal/constants"
	"github.com/chrissnell/statgis/internal/log"
	"github.com/chrissnell/statgis/pkg/responseformat"
	"github.com/gorilla/mux"
)

// maxBodyBytes bounds request bodies; regions are GeoJSON and can be large
const maxBodyBytes = 16 << 20

// defaultRunLimit is the page size of GET /runs
const defaultRunLimit = 50

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// StatusCode maps a service error to its HTTP status
func StatusCode(err error) int {
	switch analysis.Classify(err) {
	case analysis.KindInvalid:
		return http.StatusBadRequest
	case analysis.KindNotFound:
		return http.StatusNotFound
	case analysis.KindUnprocessable:
		return http.StatusUnprocessableEntity
	case analysis.KindTimeout:
		return http.StatusGatewayTimeout
	case analysis.KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, err error) {
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.controller.logger.Errorf("%s %s: %v", req.Method, req.URL.Path, err)
	} else {
		h.controller.logger.Debugf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	if werr := h.formatter.WriteError(w, req, status, err); werr != nil {
		log.Errorf("error writing error response: %v", werr)
	}
}

func (h *Handlers) write(w http.ResponseWriter, req *http.Request, data any) {
	if err := h.formatter.WriteResponse(w, req, http.StatusOK, data); err != nil {
		log.Errorf("error writing response for %s: %v", req.URL.Path, err)
	}
}

// decode reads a JSON request body. An empty body leaves v untouched.
func decode(req *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: decoding body: %v", analysis.ErrInvalidRequest, err)
	}
	return nil
}

// analyze decodes a request, points it at the dataset named in the path and
// runs it
func analyze[Req any, Res any](h *Handlers, w http.ResponseWriter, req *http.Request, setDataset func(*Req, string), run func(context.Context, Req) (Res, error)) {
	var body Req
	if err := decode(req, &body); err != nil {
		h.writeError(w, req, err)
		return
	}
	setDataset(&body, mux.Vars(req)["name"])

	ctx, cancel := h.controller.service.WithTimeout(req.Context())
	defer cancel()
	res, err := run(ctx, body)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.write(w, req, res)
}

// GetDatasets lists the configured datasets and their load state
func (h *Handlers) GetDatasets(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, h.controller.service.Datasets())
}

// PostZonal handles zonal statistics requests
func (h *Handlers) PostZonal(w http.ResponseWriter, req *http.Request) {
	analyze(h, w, req, func(r *analysis.ZonalRequest, name string) { r.Dataset = name }, h.controller.service.Zonal)
}

// PostTimeseries handles time-series decomposition requests
func (h *Handlers) PostTimeseries(w http.ResponseWriter, req *http.Request) {
	analyze(h, w, req, func(r *analysis.DecomposeRequest, name string) { r.Dataset = name }, h.controller.service.Decompose)
}

// PostYearly handles per-year reduction requests
func (h *Handlers) PostYearly(w http.ResponseWriter, req *http.Request) {
	analyze(h, w, req, func(r *analysis.YearlyRequest, name string) { r.Dataset = name }, h.controller.service.Yearly)
}

// PostSample handles pixel sampling requests
func (h *Handlers) PostSample(w http.ResponseWriter, req *http.Request) {
	analyze(h, w, req, func(r *analysis.SampleRequest, name string) { r.Dataset = name }, h.controller.service.Sample)
}

// PostHypsometric handles hypsometric curve requests
func (h *Handlers) PostHypsometric(w http.ResponseWriter, req *http.Request) {
	analyze(h, w, req, func(r *analysis.HypsometricRequest, name string) { r.Dataset = name }, h.controller.service.Hypsometric)
}

// PostPlume handles plume characterization requests
func (h *Handlers) PostPlume(w http.ResponseWriter, req *http.Request) {
	analyze(h, w, req, func(r *analysis.PlumeRequest, name string) { r.Dataset = name }, h.controller.service.Plume)
}

// PostWaterFrequency handles water frequency requests
func (h *Handlers) PostWaterFrequency(w http.ResponseWriter, req *http.Request) {
	analyze(h, w, req, func(r *analysis.FrequencyRequest, name string) { r.Dataset = name }, h.controller.service.WaterFrequency)
}

// GetRuns lists stored runs, optionally for one dataset
func (h *Handlers) GetRuns(w http.ResponseWriter, req *http.Request) {
	limit := defaultRunLimit
	if l := req.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			h.writeError(w, req, fmt.Errorf("%w: limit must be a positive integer", analysis.ErrInvalidRequest))
			return
		}
		limit = n
	}

	runs, err := h.controller.service.Runs(req.Context(), req.URL.Query().Get("dataset"), limit)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.write(w, req, runs)
}

// GetRun returns the stored result of a run
func (h *Handlers) GetRun(w http.ResponseWriter, req *http.Request) {
	run, err := h.controller.service.Run(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	if err := h.formatter.WriteRawJSON(w, req, []byte(run.Result), &responseformat.JSONWrapper{LastUpdated: run.CreatedAt}); err != nil {
		log.Errorf("error writing run %s: %v", run.ID, err)
	}
}

// GetRequestLog returns the most recent HTTP requests
func (h *Handlers) GetRequestLog(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, log.GetHTTPLogBuffer().Entries())
}

// GetVersion returns the server version
func (h *Handlers) GetVersion(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, map[string]string{"version": constants.Version})
}
