package support

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"os"
	"strings"

	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/docext/internal/testutil"
)

func (tc *TestContext) aTextPDFContaining(name, text string) error {
	data := testutil.BuildTextPDF([]testutil.PDFPage{testutil.ParagraphPage(text)})
	return os.WriteFile(tc.Path(name), data, 0o600)
}

func (tc *TestContext) aTwoPagePDF(name, first, second string) error {
	data := testutil.BuildTextPDF([]testutil.PDFPage{
		testutil.ParagraphPage(first),
		testutil.ParagraphPage(second),
	})
	return os.WriteFile(tc.Path(name), data, 0o600)
}

func (tc *TestContext) aBlankScannedPage(name string) error {
	img := imaging.New(600, 800, color.White)
	return imaging.Save(img, tc.Path(name))
}

func (tc *TestContext) aFileWithContent(name, content string) error {
	return os.WriteFile(tc.Path(name), []byte(content), 0o600)
}

func (tc *TestContext) aFileCopiedFrom(name, source string) error {
	data, err := os.ReadFile(tc.Path(source))
	if err != nil {
		return err
	}
	return os.WriteFile(tc.Path(name), data, 0o600)
}

func (tc *TestContext) aDirectory(name string) error {
	return os.MkdirAll(tc.Path(name), 0o750)
}

func (tc *TestContext) theEnvironmentVariableIsSetTo(key, value string) error {
	return tc.setEnv(key, value)
}

func (tc *TestContext) iRun(command string) error {
	tc.RunCommand(command)
	return nil
}

func (tc *TestContext) theCommandShouldSucceed() error {
	if tc.LastError != nil {
		return fmt.Errorf("command %q failed: %w\nstderr: %s", tc.LastCommand, tc.LastError, tc.LastStderr)
	}
	return nil
}

func (tc *TestContext) theCommandShouldFail() error {
	if tc.LastError == nil {
		return fmt.Errorf("command %q succeeded, expected failure\noutput: %s", tc.LastCommand, tc.LastOutput)
	}
	return nil
}

func (tc *TestContext) theOutputShouldContain(text string) error {
	if !strings.Contains(tc.LastOutput, text) {
		return fmt.Errorf("output does not contain %q\noutput: %s", text, tc.LastOutput)
	}
	return nil
}

func (tc *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(tc.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains %q", text)
	}
	return nil
}

func (tc *TestContext) theStderrShouldContain(text string) error {
	if !strings.Contains(tc.LastStderr, text) {
		return fmt.Errorf("stderr does not contain %q\nstderr: %s", text, tc.LastStderr)
	}
	return nil
}

func (tc *TestContext) theErrorShouldMention(text string) error {
	if tc.LastError == nil {
		return errors.New("no error was returned")
	}
	if !strings.Contains(tc.LastError.Error(), text) {
		return fmt.Errorf("error %q does not mention %q", tc.LastError, text)
	}
	return nil
}

func (tc *TestContext) theOutputShouldBeValidJSON() error {
	if !json.Valid([]byte(tc.LastOutput)) {
		return fmt.Errorf("output is not valid JSON: %s", tc.LastOutput)
	}
	return nil
}

func (tc *TestContext) theJSONFieldShouldEqual(path, expected string) error {
	return jsonFieldEquals(tc.LastOutput, path, expected)
}

func (tc *TestContext) theJSONListShouldHaveEntries(path string, n int) error {
	v, err := lookupJSON(tc.LastOutput, path)
	if err != nil {
		return err
	}
	list, ok := v.([]any)
	if !ok {
		return fmt.Errorf("%s is not a list", path)
	}
	if len(list) != n {
		return fmt.Errorf("%s has %d entries, expected %d", path, len(list), n)
	}
	return nil
}

func (tc *TestContext) theFileShouldExist(name string) error {
	if _, err := os.Stat(tc.Path(name)); err != nil {
		return fmt.Errorf("file %s does not exist: %w", name, err)
	}
	return nil
}

func (tc *TestContext) theFileShouldContain(name, text string) error {
	data, err := os.ReadFile(tc.Path(name))
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), text) {
		return fmt.Errorf("file %s does not contain %q", name, text)
	}
	return nil
}

// RegisterCommonSteps registers the document and command line steps.
func (tc *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	// Fixtures
	sc.Step(`^a text PDF "([^"]*)" containing "([^"]*)"$`, tc.aTextPDFContaining)
	sc.Step(`^a two-page PDF "([^"]*)" with pages "([^"]*)" and "([^"]*)"$`, tc.aTwoPagePDF)
	sc.Step(`^a blank scanned page "([^"]*)"$`, tc.aBlankScannedPage)
	sc.Step(`^a file "([^"]*)" with content "([^"]*)"$`, tc.aFileWithContent)
	sc.Step(`^a file "([^"]*)" copied from "([^"]*)"$`, tc.aFileCopiedFrom)
	sc.Step(`^a directory "([^"]*)"$`, tc.aDirectory)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, tc.theEnvironmentVariableIsSetTo)

	// Execution
	sc.Step(`^I run "([^"]*)"$`, tc.iRun)
	sc.Step(`^the command should succeed$`, tc.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, tc.theCommandShouldFail)

	// Output
	sc.Step(`^the output should contain "([^"]*)"$`, tc.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, tc.theOutputShouldNotContain)
	sc.Step(`^stderr should contain "([^"]*)"$`, tc.theStderrShouldContain)
	sc.Step(`^the error should mention "([^"]*)"$`, tc.theErrorShouldMention)
	sc.Step(`^the output should be valid JSON$`, tc.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON field "([^"]*)" should equal "([^"]*)"$`, tc.theJSONFieldShouldEqual)
	sc.Step(`^the JSON list "([^"]*)" should have (\d+) entries$`, tc.theJSONListShouldHaveEntries)
	sc.Step(`^the file "([^"]*)" should exist$`, tc.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, tc.theFileShouldContain)
}
