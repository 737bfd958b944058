package export

import (
	"context"
	"fmt"
	"io"

	"iasmeen/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// ChromePrinter prints through a headless Chrome launched per call.
type ChromePrinter struct {
	Bin string // empty: let the launcher find or download a browser
}

func float(f float64) *float64 { return &f }

// PrintPDF loads html into a blank page and prints it on a single A4 sheet.
func (p *ChromePrinter) PrintPDF(ctx context.Context, html string) ([]byte, error) {
	l := launcher.New().Headless(true)
	if p.Bin != "" {
		l = l.Bin(p.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	defer l.Kill()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("set content: %w", err)
	}

	stream, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground: true,
		PaperWidth:      float(8.27),
		PaperHeight:     float(11.69),
		MarginTop:       float(0.4),
		MarginBottom:    float(0.4),
		MarginLeft:      float(0.4),
		MarginRight:     float(0.4),
	})
	if err != nil {
		return nil, fmt.Errorf("print to pdf: %w", err)
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("read pdf stream: %w", err)
	}
	logging.Export("printed %d byte PDF", len(data))
	return data, nil
}
