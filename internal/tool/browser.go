package tool

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"zenai/internal/command"
	"zenai/internal/domain"
)

// maxPageText caps the text returned to the model.
const maxPageText = 20000

// PageReader renders a page and returns its visible text.
type PageReader interface {
	ReadText(ctx context.Context, url, selector string) (string, error)
}

// BrowserTool is main.browser.
type BrowserTool struct {
	reader PageReader
}

func NewBrowserTool(reader PageReader) *BrowserTool {
	return &BrowserTool{reader: reader}
}

func (t *BrowserTool) Execute(ctx context.Context, raw string) (any, error) {
	if t.reader == nil {
		return domain.Fail("browser is disabled; set tools.browser.enabled in the config"), nil
	}
	args := command.ParseArgs(raw)
	url := strings.TrimSpace(args.String("url"))
	if url == "" {
		return domain.Fail("missing required parameter: url"), nil
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return domain.Fail("url must start with http:// or https://"), nil
	}
	text, err := t.reader.ReadText(ctx, url, args.String("selector"))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.Fail("timed out loading %s", url), nil
		}
		return nil, err
	}
	if len(text) > maxPageText {
		cut := maxPageText
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "\n... (truncated)"
	}
	return domain.OK(text), nil
}
