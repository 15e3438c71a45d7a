// Package export renders an ExtractionResult to the supported output
// formats. The pipeline itself never formats anything; this is the only
// place the output contract becomes concrete.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/scholium/extract-cli/internal/model"
)

// Format selects an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatXLSX:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", eris.Errorf("export: unknown format %q (json, yaml, xlsx)", s)
	}
}

// Write renders result to path in the given format. An empty path writes
// JSON or YAML to stdout; XLSX always requires a path.
func Write(path string, format Format, result *model.ExtractionResult) error {
	if format == FormatXLSX {
		if path == "" {
			return eris.New("export: xlsx requires an output path")
		}
		return WriteXLSX(path, result)
	}

	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrap(err, "export: create file")
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	switch format {
	case FormatJSON:
		return WriteJSON(w, result)
	case FormatYAML:
		return WriteYAML(w, result)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

// WriteJSON writes the result as indented JSON.
func WriteJSON(w io.Writer, result *model.ExtractionResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(result), "export: encode json")
}

// WriteYAML writes the result as a YAML document.
func WriteYAML(w io.Writer, result *model.ExtractionResult) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(result); err != nil {
		return eris.Wrap(err, "export: encode yaml")
	}
	return eris.Wrap(enc.Close(), "export: close yaml encoder")
}

// WriteXLSX writes one workbook with an Elements sheet and a Sections
// metrics sheet.
func WriteXLSX(path string, result *model.ExtractionResult) error {
	file := xlsx.NewFile()

	elements, err := file.AddSheet("Elements")
	if err != nil {
		return eris.Wrap(err, "export: add elements sheet")
	}
	header := elements.AddRow()
	for _, h := range []string{"Section", "Type", "Text", "Evidence", "Confidence", "Page", "Match"} {
		header.AddCell().Value = h
	}
	for _, el := range result.Elements {
		row := elements.AddRow()
		row.AddCell().Value = el.Section
		row.AddCell().Value = string(el.Type)
		row.AddCell().Value = el.Text
		row.AddCell().Value = string(el.Evidence)
		row.AddCell().SetFloat(el.Confidence)
		row.AddCell().SetInt(el.Page)
		row.AddCell().Value = el.MatchMethod
	}

	sections, err := file.AddSheet("Sections")
	if err != nil {
		return eris.Wrap(err, "export: add sections sheet")
	}
	header = sections.AddRow()
	for _, h := range []string{"Section", "Status", "Chunks", "Attempted", "Verified", "Rejected", "Low Confidence", "Duplicates", "Retries", "Failure Reason"} {
		header.AddCell().Value = h
	}
	for _, m := range result.Sections {
		row := sections.AddRow()
		row.AddCell().Value = m.Section
		row.AddCell().Value = string(m.Status)
		row.AddCell().SetInt(m.Chunks)
		row.AddCell().SetInt(m.Attempted)
		row.AddCell().SetInt(m.Verified)
		row.AddCell().SetInt(m.Rejected)
		row.AddCell().SetInt(m.LowConf)
		row.AddCell().SetInt(m.Duplicates)
		row.AddCell().SetInt(m.RetryCount)
		row.AddCell().Value = m.FailureReason
	}

	return eris.Wrap(file.Save(path), "export: save xlsx")
}

// Summary returns a short human-readable account of the run for terminal
// output.
func Summary(result *model.ExtractionResult) string {
	attempted, verified, rejected := result.Totals()
	var b strings.Builder
	fmt.Fprintf(&b, "paper %s: %d elements verified (%d attempted, %d rejected) across %d sections\n",
		result.Paper.ID, verified, attempted, rejected, len(result.Sections))
	for _, m := range result.Sections {
		fmt.Fprintf(&b, "  %-20s %-20s verified=%d", m.Section, m.Status, m.Verified)
		if m.FailureReason != "" {
			fmt.Fprintf(&b, "  (%s)", m.FailureReason)
		}
		b.WriteString("\n")
	}
	return b.String()
}
