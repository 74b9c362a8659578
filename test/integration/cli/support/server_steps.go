package support

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/docext/internal/pipeline"
	"github.com/MeKo-Tech/docext/internal/server"
)

func (tc *TestContext) theExtractionAPIIsRunningWithoutOCR() error {
	p, err := pipeline.NewBuilder().WithoutOCR().Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	tc.Pipeline = p

	srv := server.NewServer(server.Config{CORSOrigin: "*", MaxUploadMB: 1}, p)
	tc.HTTPServer = httptest.NewServer(srv.Handler())
	return nil
}

func (tc *TestContext) iRequest(path string) error {
	if tc.HTTPServer == nil {
		return errors.New("API server is not running")
	}
	resp, err := http.Get(tc.HTTPServer.URL + path)
	if err != nil {
		return err
	}
	return tc.recordResponse(resp)
}

func (tc *TestContext) iUploadTo(name, path string) error {
	return tc.upload(name, path, nil)
}

func (tc *TestContext) iUploadToWithField(name, path, field, value string) error {
	return tc.upload(name, path, map[string]string{field: value})
}

func (tc *TestContext) upload(name, path string, fields map[string]string) error {
	if tc.HTTPServer == nil {
		return errors.New("API server is not running")
	}
	data, err := os.ReadFile(tc.Path(name))
	if err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	resp, err := http.Post(tc.HTTPServer.URL+path, mw.FormDataContentType(), &body)
	if err != nil {
		return err
	}
	return tc.recordResponse(resp)
}

func (tc *TestContext) recordResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.LastHTTPStatusCode = resp.StatusCode
	tc.LastHTTPResponse = string(body)
	tc.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		tc.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (tc *TestContext) theResponseStatusShouldBe(code int) error {
	if tc.LastHTTPStatusCode != code {
		return fmt.Errorf("status %d, expected %d\nbody: %s", tc.LastHTTPStatusCode, code, tc.LastHTTPResponse)
	}
	return nil
}

func (tc *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(tc.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain %q\nbody: %s", text, tc.LastHTTPResponse)
	}
	return nil
}

func (tc *TestContext) theResponseJSONFieldShouldEqual(path, expected string) error {
	return jsonFieldEquals(tc.LastHTTPResponse, path, expected)
}

func (tc *TestContext) theResponseHeaderShouldBeSet(name string) error {
	if tc.LastHTTPHeaders[http.CanonicalHeaderKey(name)] == "" {
		return fmt.Errorf("header %s is not set", name)
	}
	return nil
}

// RegisterServerSteps registers the API steps.
func (tc *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the extraction API is running without OCR$`, tc.theExtractionAPIIsRunningWithoutOCR)
	sc.Step(`^I request "([^"]*)"$`, tc.iRequest)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, tc.iUploadTo)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)" with "([^"]*)" set to "([^"]*)"$`, tc.iUploadToWithField)
	sc.Step(`^the response status should be (\d+)$`, tc.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, tc.theResponseShouldContain)
	sc.Step(`^the response JSON field "([^"]*)" should equal "([^"]*)"$`, tc.theResponseJSONFieldShouldEqual)
	sc.Step(`^the response header "([^"]*)" should be set$`, tc.theResponseHeaderShouldBeSet)
}
