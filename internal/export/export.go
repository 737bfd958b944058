// Package export writes rendered reports to disk as Markdown or PDF.
package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"iasmeen/internal/logging"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Printer turns an HTML document into PDF bytes.
type Printer interface {
	PrintPDF(ctx context.Context, html string) ([]byte, error)
}

// Exporter writes reports into Dir.
type Exporter struct {
	Dir     string
	Printer Printer
	now     func() time.Time
}

// New creates an Exporter writing into dir. A nil printer defaults to a
// headless Chrome printer using chromeBin (empty: auto-detect).
func New(dir, chromeBin string, printer Printer) *Exporter {
	if printer == nil {
		printer = &ChromePrinter{Bin: chromeBin}
	}
	return &Exporter{Dir: dir, Printer: printer, now: time.Now}
}

// FileName is the report name for a given day and extension.
func FileName(day time.Time, ext string) string {
	return fmt.Sprintf("iasmeen_report_%s.%s", day.Format("2006-01-02"), ext)
}

// Markdown writes md as iasmeen_report_<date>.md and returns the path.
func (e *Exporter) Markdown(md string) (string, error) {
	return e.write(FileName(e.now(), "md"), []byte(md))
}

// PDF renders md to HTML, prints it to A4 with PDF and returns the path.
func (e *Exporter) PDF(ctx context.Context, md string) (string, error) {
	timer := logging.StartTimer(logging.CategoryExport, "PDF")
	defer timer.Stop()

	doc, err := HTML(md)
	if err != nil {
		return "", err
	}
	pdf, err := e.Printer.PrintPDF(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to print PDF: %w", err)
	}
	return e.write(FileName(e.now(), "pdf"), pdf)
}

func (e *Exporter) write(name string, data []byte) (string, error) {
	if err := os.MkdirAll(e.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}
	path := filepath.Join(e.Dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	logging.Export("report written to %s (%d bytes)", path, len(data))
	return path, nil
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

const pageStyle = `body{font-family:Helvetica,Arial,sans-serif;color:#1f1b2e;margin:24px;font-size:12px}
h1{color:#5b21b6;letter-spacing:.1em}h2{color:#6d28d9;border-bottom:1px solid #ddd6fe;padding-bottom:4px}
table{border-collapse:collapse}td,th{border:1px solid #ddd6fe;padding:4px 8px}`

// HTML wraps the rendered Markdown in a standalone page.
func HTML(md string) (string, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(md), &body); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return "<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>IASMEEN</title><style>" +
		pageStyle + "</style></head><body>" + body.String() + "</body></html>", nil
}
