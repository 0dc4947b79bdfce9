package server

import (
	"encoding/json"
	"net/http"
	"time"

	commons_errors "github.com/gruntwork-io/go-commons/errors"
	"github.com/gruntwork-io/smoke-checker/options"
	"github.com/gruntwork-io/smoke-checker/probe"
	"golang.org/x/sync/singleflight"
)

type httpResponse struct {
	StatusCode  int
	Body        string
	ContentType string
}

// StartHttpServer starts the smoke-check HTTP server, turning the suite into a
// long-lived installation canary probeable by an orchestrator or load balancer.
// It leverages strict connection timeouts (Read, Write, Idle) to prevent resource
// exhaustion attacks such as Slowloris, keeping the checker resilient under
// degraded network conditions.
func StartHttpServer(opts *options.Options) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", httpHandler(opts))

	// Resolve dynamic default for WriteTimeout if not explicitly provided.
	// Must cover the suite's worst case: launch observation plus termination
	// grace plus one timeout per flag probe, plus buffer for generating the
	// response.
	writeTimeout := time.Duration(opts.HttpWriteTimeout) * time.Second
	if writeTimeout == 0 {
		worstCase := opts.LaunchWait + opts.TermGrace + opts.ProbeTimeout*len(opts.ProbeFlags)
		writeTimeout = time.Duration(worstCase+5) * time.Second
	}

	readTimeout := time.Duration(opts.HttpReadTimeout) * time.Second
	if readTimeout == 0 {
		readTimeout = 5 * time.Second
	}

	idleTimeout := time.Duration(opts.HttpIdleTimeout) * time.Second
	if idleTimeout == 0 {
		idleTimeout = 15 * time.Second
	}

	srv := &http.Server{
		Addr:         opts.Listener,
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	err := srv.ListenAndServe()
	if err != nil {
		return err
	}

	return nil
}

// httpHandler processes inbound HTTP requests to the smoke-check endpoint.
// It acts as the routing logic between Singleflight execution (collapsed
// concurrent requests) and standard execution.
func httpHandler(opts *options.Options) http.HandlerFunc {
	var group singleflight.Group

	return func(w http.ResponseWriter, r *http.Request) {
		var resp *httpResponse
		logger := opts.Logger

		// In Singleflight mode only one suite run will be performed at any
		// given time, with the result being shared across concurrent inbound
		// requests
		if opts.Singleflight {
			logger.Infof("Received inbound request. Performing singleflight smoke checks...")

			result, _, shared := group.Do("check", func() (interface{}, error) {
				logger.Infof("Beginning smoke checks...")
				return runSuiteResponse(r, opts), nil
			})

			if shared {
				logger.Infof("Singleflight smoke check response was shared between multiple requests.")
			}

			resp = result.(*httpResponse)
		} else {
			logger.Infof("Received inbound request. Beginning smoke checks...")
			resp = runSuiteResponse(r, opts)
		}

		err := writeHttpResponse(w, resp)
		if err != nil {
			opts.Logger.Error("Failed to send HTTP response. Exiting.")
			panic(err)
		}
	}
}

// runSuiteResponse executes the smoke suite once and maps its report onto an HTTP
// response: 200 OK on pass, 503 Service Unavailable if any hard check failed.
func runSuiteResponse(r *http.Request, opts *options.Options) *httpResponse {
	logger := opts.Logger

	report := probe.RunSuite(r.Context(), opts)

	statusCode := http.StatusOK
	body := "OK"
	contentType := "text/plain"

	if !report.Passed() {
		statusCode = http.StatusServiceUnavailable
		body = report.Status
	}

	if opts.DetailedStatus {
		contentType = "application/json"
		jsonBytes, err := json.Marshal(report)
		if err == nil {
			body = string(jsonBytes)
		} else {
			logger.Warnf("Failed to marshal detailed status JSON: %v", err)
			body = `{"status":"error_marshalling_json"}`
		}
	}

	if statusCode == http.StatusOK {
		logger.Infof("All smoke checks passed. Returning HTTP 200 response.\n")
	} else {
		logger.Infof("At least one smoke check failed. Returning HTTP 503 response.\n")
	}

	return &httpResponse{StatusCode: statusCode, Body: body, ContentType: contentType}
}

func writeHttpResponse(w http.ResponseWriter, resp *httpResponse) error {
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	} else {
		w.Header().Set("Content-Type", "text/plain")
	}
	w.WriteHeader(resp.StatusCode)
	_, err := w.Write([]byte(resp.Body))
	if err != nil {
		return commons_errors.WithStackTrace(err)
	}
	return nil
}
