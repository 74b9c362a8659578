package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/docext/internal/pipeline"
)

// formatBatchResults formats the batch processing results in the specified format.
func formatBatchResults(results []pipeline.BatchResult, format string) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(results)
	case FormatCSV:
		return formatCSV(results)
	case FormatText, "":
		return formatText(results), nil
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}

func formatJSON(results []pipeline.BatchResult) (string, error) {
	out := struct {
		Documents []pipeline.BatchResult `json:"documents"`
	}{Documents: results}

	bts, err := json.MarshalIndent(out, "", "  ")
	return string(bts), err
}

func formatCSV(results []pipeline.BatchResult) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	header := []string{
		"file", "method", "pages", "pages_with_ocr", "confidence", "quality_score", "needs_review", "tables", "error",
	}
	if err := writer.Write(header); err != nil {
		return "", err
	}

	for _, br := range results {
		row := []string{br.Path, "", "0", "0", "0", "0", "", "0", br.Error}
		if res := br.Result; res != nil {
			row = []string{
				br.Path,
				res.Method,
				strconv.Itoa(res.PagesProcessed),
				strconv.Itoa(len(res.PagesWithOCR)),
				fmt.Sprintf("%.3f", res.Confidence),
				fmt.Sprintf("%.3f", res.QualityScore),
				strconv.FormatBool(res.NeedsReview),
				strconv.Itoa(len(res.Tables)),
				"",
			}
		}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

func formatText(results []pipeline.BatchResult) string {
	var output strings.Builder
	for i, br := range results {
		if i > 0 {
			output.WriteString("\n")
		}
		fmt.Fprintf(&output, "# %s\n", br.Path)
		if br.Result == nil {
			fmt.Fprintf(&output, "ERROR: %s\n", br.Error)
			continue
		}
		output.WriteString(br.Result.Text)
		output.WriteString("\n")
	}
	return output.String()
}

// formatDocument renders a single document for WriteOutputDir.
func formatDocument(br pipeline.BatchResult, format string) (string, error) {
	if format != FormatJSON {
		return br.Result.Text + "\n", nil
	}
	bts, err := json.MarshalIndent(br.Result, "", "  ")
	return string(bts), err
}
