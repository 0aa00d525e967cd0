// Package input loads the user's free-text details for the generate command.
package input

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Stdin is the input name that reads from standard input.
const Stdin = "-"

const (
	fetchTimeout = 30 * time.Second
	maxBodyBytes = 5 << 20
	userAgent    = "cv-generator/1.0"
)

// ErrEmpty is returned when the source holds no text.
var ErrEmpty = errors.New("input is empty")

// Fetch reads details from a file path, from stdin when input is "-", or
// from an http(s) URL.
func Fetch(ctx context.Context, input string) (content string, err error) {
	content, err = FetchFrom(ctx, input, os.Stdin)
	return content, err
}

// FetchFrom is Fetch with an explicit reader standing in for stdin.
func FetchFrom(ctx context.Context, input string, stdin io.Reader) (content string, err error) {
	switch {
	case input == Stdin:
		content, err = fetchFromReader(stdin)
		if err != nil {
			err = errors.Wrap(err, "failed to read details from stdin")
			return content, err
		}
	case isURL(input):
		content, err = fetchFromURL(ctx, input)
		if err != nil {
			err = errors.Wrapf(err, "failed to fetch details from URL: %s", input)
			return content, err
		}
	default:
		content, err = fetchFromFile(input)
		if err != nil {
			err = errors.Wrapf(err, "failed to read details from file: %s", input)
			return content, err
		}
	}

	return content, err
}

func isURL(input string) (ok bool) {
	parsed, err := url.Parse(input)
	ok = err == nil && (parsed.Scheme == "http" || parsed.Scheme == "https")
	return ok
}

func fetchFromReader(r io.Reader) (content string, err error) {
	var data []byte
	data, err = io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil {
		return content, err
	}

	content = strings.TrimSpace(string(data))
	if content == "" {
		err = ErrEmpty
		return content, err
	}

	return content, err
}

func fetchFromFile(path string) (content string, err error) {
	var f *os.File
	f, err = os.Open(path)
	if err != nil {
		return content, err
	}
	defer f.Close()

	content, err = fetchFromReader(f)
	return content, err
}

func fetchFromURL(ctx context.Context, urlStr string) (content string, err error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	var req *http.Request
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		err = errors.Wrap(err, "failed to create HTTP request")
		return content, err
	}
	req.Header.Set("User-Agent", userAgent)

	var resp *http.Response
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		err = errors.Wrap(err, "HTTP request failed")
		return content, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err = errors.Errorf("HTTP request failed with status: %d", resp.StatusCode)
		return content, err
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)

	if !strings.Contains(resp.Header.Get("Content-Type"), "html") {
		content, err = fetchFromReader(body)
		return content, err
	}

	content, err = ExtractText(body)
	if err != nil {
		return content, err
	}

	if content == "" {
		err = errors.Wrap(ErrEmpty, "no text left after removing markup")
		return content, err
	}

	return content, err
}

// blockElements start a new line in extracted text.
//
//nolint:gochecknoglobals // Lookup table
var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Footer: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Header: true, atom.Hr: true, atom.Li: true,
	atom.Main: true, atom.Nav: true, atom.Ol: true, atom.P: true, atom.Pre: true,
	atom.Section: true, atom.Table: true, atom.Td: true, atom.Th: true, atom.Tr: true,
	atom.Ul: true,
}

// ExtractText returns the visible text of an HTML document. Script and style
// contents are dropped, block elements become line breaks and runs of
// whitespace collapse to a single space.
func ExtractText(r io.Reader) (text string, err error) {
	z := html.NewTokenizer(r)
	var b strings.Builder
	hidden := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				text = normalizeText(b.String())
				return text, err
			}
			err = errors.Wrap(z.Err(), "failed to parse HTML")
			return text, err

		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if a == atom.Script || a == atom.Style || a == atom.Noscript {
				switch tt {
				case html.StartTagToken:
					hidden++
				case html.EndTagToken:
					if hidden > 0 {
						hidden--
					}
				}
				continue
			}
			if blockElements[a] {
				b.WriteByte('\n')
			}

		case html.TextToken:
			if hidden == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func normalizeText(raw string) (text string) {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	text = strings.Join(lines, "\n")
	return text
}
