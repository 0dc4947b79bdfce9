package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gruntwork-io/go-commons/logging"
	"github.com/gruntwork-io/smoke-checker/options"
	"github.com/gruntwork-io/smoke-checker/probe"
	"github.com/gruntwork-io/smoke-checker/test"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func createDummyBinary(t *testing.T, dir string, name string, content string) string {
	binaryPath := filepath.Join(dir, name)
	if runtime.GOOS == "windows" {
		binaryPath += ".bat"
	} else {
		binaryPath += ".sh"
		content = "#!/bin/sh\n" + content
	}
	err := os.WriteFile(binaryPath, []byte(content), 0755)
	if err != nil {
		t.Fatalf("Failed to create dummy binary: %v", err)
	}
	return filepath.ToSlash(binaryPath)
}

func createOptionsForTest(t *testing.T, binary string) *options.Options {
	logger := logging.GetLogger("smoke-checker", "v0.0.0")
	logger.Logger.Out = os.Stdout
	logger.Logger.Level = logrus.InfoLevel

	return &options.Options{
		Binary:       binary,
		ProbeFlags:   []string{"--version"},
		ProbeTimeout: 5,
		SkipLaunch:   true,
		Display:      ":99",
		Logger:       logger.Logger,
	}
}

func TestStartHttpServerInvalidListener(t *testing.T) {
	opts := createOptionsForTest(t, "muttontext")
	opts.Listener = "256.256.256.256:9999999" // Invalid IP and port to force listen failure

	err := StartHttpServer(opts)
	assert.Error(t, err, "Expected StartHttpServer to fail with invalid listener")
}

func TestStartHttpServerServesSuite(t *testing.T) {
	tmpDir := t.TempDir()
	okBinary := createDummyBinary(t, tmpDir, "ok_binary", "echo 1.2.3")

	ports, err := test.GetFreePorts(1)
	if err != nil {
		assert.FailNow(t, "Failed to get free ports: %v", err.Error())
	}

	opts := createOptionsForTest(t, okBinary)
	opts.Listener = test.ListenerString(test.DEFAULT_LISTENER_ADDRESS, ports[0])

	// ListenAndServe blocks; the server stays up until the test process exits
	go func() {
		_ = StartHttpServer(opts)
	}()

	url := fmt.Sprintf("http://%s/", opts.Listener)
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		assert.FailNow(t, "Server never came up: %v", err.Error())
	}

	body, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestHttpHandlerStatusCodes(t *testing.T) {
	tmpDir := t.TempDir()
	okBinary := createDummyBinary(t, tmpDir, "ok_binary", "echo 1.2.3")

	testCases := []struct {
		name           string
		binary         string
		expectedStatus int
		expectedBody   string
	}{
		{
			"suite passes",
			okBinary,
			200,
			"OK",
		},
		{
			"suite fails",
			"lskdf_non_existent_binary",
			503,
			"At least one smoke check failed",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			opts := createOptionsForTest(t, testCase.binary)

			ts := httptest.NewServer(httpHandler(opts))
			defer ts.Close()

			resp, err := http.Get(ts.URL)
			assert.NoError(t, err)

			body, err := io.ReadAll(resp.Body)
			assert.NoError(t, err)
			_ = resp.Body.Close()

			assert.Equal(t, testCase.expectedStatus, resp.StatusCode)
			assert.Equal(t, testCase.expectedBody, string(body))
		})
	}
}

func TestHttpHandlerDetailedStatus(t *testing.T) {
	tmpDir := t.TempDir()
	okBinary := createDummyBinary(t, tmpDir, "ok_binary", "echo 1.2.3")

	opts := createOptionsForTest(t, okBinary)
	opts.DetailedStatus = true

	ts := httptest.NewServer(httpHandler(opts))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	assert.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var report probe.Report
	err = json.Unmarshal(body, &report)
	assert.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "OK", report.Status)
	assert.Len(t, report.Probes, 2)
}

func TestSingleflight(t *testing.T) {

	testCases := []struct {
		name             string
		singleflight     bool
		expectedRunCount int
	}{
		{
			"singleflight disabled",
			false,
			10,
		},
		{
			"singleflight enabled",
			true,
			1,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			tmpDir := t.TempDir()

			// The dummy binary appends a line per invocation so we can count how many
			// suite runs the handler actually performed, and sleeps so that the 10
			// requests below overlap.
			countFile := filepath.ToSlash(filepath.Join(tmpDir, "invocations"))
			content := fmt.Sprintf("echo x >> \"%s\"\nsleep 1", countFile)
			if runtime.GOOS == "windows" {
				content = fmt.Sprintf("echo x >> \"%s\"\r\nping 127.0.0.1 -n 2 > nul", countFile)
			}
			slowBinary := createDummyBinary(t, tmpDir, "slow_binary", content)

			opts := createOptionsForTest(t, slowBinary)
			opts.Singleflight = testCase.singleflight

			handler := httpHandler(opts)
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handler.ServeHTTP(w, r)
			}))
			defer ts.Close()

			// Fire off 10 concurrent requests. In Singleflight mode only one
			// underlying suite run should be performed.
			var wg sync.WaitGroup
			wg.Add(10)
			for i := 0; i < 10; i++ {
				go func() {
					resp, err := http.Get(ts.URL)
					if err != nil {
						assert.FailNow(t, "failed to perform HTTP request: %v", err)
					}

					_, _ = io.ReadAll(resp.Body)
					_ = resp.Body.Close() // Explicitly close to prevent resource leaks
					wg.Done()
				}()
			}
			wg.Wait()

			data, err := os.ReadFile(countFile)
			assert.NoError(t, err)

			runCount := len(strings.Fields(string(data)))
			assert.Equal(t, testCase.expectedRunCount, runCount)
		})
	}
}
