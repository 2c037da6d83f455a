// Package e2e drives the scan API end to end with godog scenarios.
package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/cucumber/godog"

	"luftscan/internal/platform/httpserver"
	"luftscan/internal/scan"
	"luftscan/internal/scan/handler"
	"luftscan/internal/scan/store"
	"luftscan/internal/sensitivity"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	server *httptest.Server
	status int
	body   []byte
	scanID string
}

// RegisterSteps registers every step definition against tc.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	ctx.Step(`^the scan API is running$`, tc.theScanAPIIsRunning)
	ctx.Step(`^I create a scan with:$`, tc.iCreateAScanWith)
	ctx.Step(`^I evaluate the criterion with:$`, tc.iEvaluateTheCriterionWith)
	ctx.Step(`^I request the "([^"]*)" sensitivity of the scan$`, tc.iRequestTheSensitivity)
	ctx.Step(`^I export the scan rows as "([^"]*)"$`, tc.iExportTheScanRows)
	ctx.Step(`^I get scan "([^"]*)"$`, tc.iGetScan)

	ctx.Step(`^the response status should be (\d+)$`, tc.theResponseStatusShouldBe)
	ctx.Step(`^the error code should be "([^"]*)"$`, tc.theErrorCodeShouldBe)
	ctx.Step(`^the scan status should be "([^"]*)"$`, tc.theScanStatusShouldBe)
	ctx.Step(`^the scan should have completed (\d+) samples$`, tc.theScanShouldHaveCompleted)
	ctx.Step(`^the "([^"]*)" coefficient for "([^"]*)" should be (negative|positive)$`, tc.theCoefficientShouldBe)
	ctx.Step(`^the export should have (\d+) rows$`, tc.theExportShouldHaveRows)
	ctx.Step(`^the encounter should not nucleate$`, tc.theEncounterShouldNotNucleate)

	ctx.After(func(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
		if tc.server != nil {
			tc.server.Close()
		}
		return ctx, err
	})
}

func (tc *TestContext) theScanAPIIsRunning() error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := scan.New(store.NewMemory(), scan.WithLogger(logger), scan.WithMaxSamples(10_000))
	if err != nil {
		return err
	}
	r := httpserver.NewRouter(logger)
	handler.New(svc, logger).Register(r)
	tc.server = httptest.NewServer(r)
	return nil
}

func (tc *TestContext) do(method, path, body string) error {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, tc.server.URL+path, reader)
	if err != nil {
		return err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := tc.server.Client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	tc.status = resp.StatusCode
	tc.body, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) iCreateAScanWith(doc *godog.DocString) error {
	if err := tc.do(http.MethodPost, "/scans", doc.Content); err != nil {
		return err
	}
	if tc.status != http.StatusCreated {
		return nil
	}
	var resp handler.ScanResponse
	if err := json.Unmarshal(tc.body, &resp); err != nil {
		return fmt.Errorf("decode scan response: %w", err)
	}
	tc.scanID = resp.Scan.ID.String()
	return nil
}

func (tc *TestContext) iEvaluateTheCriterionWith(doc *godog.DocString) error {
	return tc.do(http.MethodPost, "/criterion", doc.Content)
}

func (tc *TestContext) iRequestTheSensitivity(method string) error {
	return tc.do(http.MethodGet, "/scans/"+tc.scanID+"/sensitivity?method="+method, "")
}

func (tc *TestContext) iExportTheScanRows(format string) error {
	return tc.do(http.MethodGet, "/scans/"+tc.scanID+"/rows?format="+format, "")
}

func (tc *TestContext) iGetScan(id string) error {
	return tc.do(http.MethodGet, "/scans/"+id, "")
}

func (tc *TestContext) theResponseStatusShouldBe(want int) error {
	if tc.status != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, tc.status, tc.body)
	}
	return nil
}

func (tc *TestContext) theErrorCodeShouldBe(code string) error {
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(tc.body, &resp); err != nil {
		return fmt.Errorf("decode error response: %w", err)
	}
	if resp.Error != code {
		return fmt.Errorf("expected error %q, got %q", code, resp.Error)
	}
	return nil
}

func (tc *TestContext) scan() (*scan.Record, error) {
	var resp handler.ScanResponse
	if err := json.Unmarshal(tc.body, &resp); err != nil {
		return nil, fmt.Errorf("decode scan response: %w", err)
	}
	if resp.Scan == nil {
		return nil, fmt.Errorf("response has no scan: %s", tc.body)
	}
	return resp.Scan, nil
}

func (tc *TestContext) theScanStatusShouldBe(status string) error {
	rec, err := tc.scan()
	if err != nil {
		return err
	}
	if string(rec.Status) != status {
		return fmt.Errorf("expected scan status %q, got %q", status, rec.Status)
	}
	return nil
}

func (tc *TestContext) theScanShouldHaveCompleted(n int) error {
	rec, err := tc.scan()
	if err != nil {
		return err
	}
	if rec.Completed != n {
		return fmt.Errorf("expected %d completed samples, got %d", n, rec.Completed)
	}
	return nil
}

func (tc *TestContext) theCoefficientShouldBe(parameter, observable, sign string) error {
	var m sensitivity.Matrix
	if err := json.Unmarshal(tc.body, &m); err != nil {
		return fmt.Errorf("decode matrix: %w", err)
	}
	v, ok := m.At(parameter, observable)
	if !ok {
		return fmt.Errorf("matrix has no (%s, %s) entry", parameter, observable)
	}
	if (sign == "negative" && v >= 0) || (sign == "positive" && v <= 0) {
		return fmt.Errorf("expected a %s coefficient for (%s, %s), got %g", sign, parameter, observable, v)
	}
	return nil
}

func (tc *TestContext) theExportShouldHaveRows(n int) error {
	lines := 0
	sc := bufio.NewScanner(bytes.NewReader(tc.body))
	for sc.Scan() {
		lines++
	}
	// CSV exports carry a header line.
	if bytes.HasPrefix(tc.body, []byte("index,")) {
		lines--
	}
	if lines != n {
		return fmt.Errorf("expected %d rows, got %d", n, lines)
	}
	return nil
}

func (tc *TestContext) theEncounterShouldNotNucleate() error {
	var report struct {
		Nucleates *bool `json:"nucleates"`
	}
	if err := json.Unmarshal(tc.body, &report); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}
	if report.Nucleates == nil || *report.Nucleates {
		return fmt.Errorf("expected no nucleation: %s", tc.body)
	}
	return nil
}
