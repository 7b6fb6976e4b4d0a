package parser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"DecreeWatcher/internal/scanner"
)

const (
	// DefaultIOERJURL is the search endpoint of the Rio de Janeiro official gazette.
	DefaultIOERJURL = "https://www.ioerj.com.br/portal/modules/conteudoonline/busca_do.php?acao=busca"

	searchField = "textobusca"
	submitField = "buscar"
	submitValue = "Buscar"
	userAgent   = "DecreeWatcher/1.0"
)

var dateExpr = regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`)

// ErrResultsNotFound means the result page carried no result table.
var ErrResultsNotFound = errors.New("result table not found")

// IOERJScanner submits the gazette search form and extracts dates from the result table.
type IOERJScanner struct {
	client *http.Client
}

// NewIOERJScanner wires an HTTP client; a nil client gets a 30 second timeout.
func NewIOERJScanner(client *http.Client) *IOERJScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &IOERJScanner{client: client}
}

// Name identifies the strategy inside the registry.
func (s *IOERJScanner) Name() string {
	return "ioerj"
}

// Scan posts the search form and returns all dd/mm/yyyy substrings of the result rows.
func (s *IOERJScanner) Scan(ctx context.Context, req scanner.Request) ([]string, error) {
	if strings.TrimSpace(req.SearchTerm) == "" {
		return nil, fmt.Errorf("empty search term")
	}

	endpoint := req.URL
	if endpoint == "" {
		endpoint = DefaultIOERJURL
	}

	doc, err := s.search(ctx, endpoint, req.SearchTerm)
	if err != nil {
		return nil, err
	}

	return extractDates(doc)
}

func (s *IOERJScanner) search(ctx context.Context, endpoint, term string) (*goquery.Document, error) {
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid portal url %s: %w", endpoint, err)
	}

	form := url.Values{}
	form.Set(searchField, term)
	form.Set(submitField, submitValue)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("portal returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func extractDates(doc *goquery.Document) ([]string, error) {
	rows := doc.Find("tbody tr")
	if doc.Find("tbody").Length() == 0 {
		return nil, ErrResultsNotFound
	}

	texts := make([]string, 0, rows.Length())
	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td").Map(func(_ int, cell *goquery.Selection) string {
			return strings.TrimSpace(cell.Text())
		})
		texts = append(texts, strings.Join(cells, " "))
	})

	dates := dateExpr.FindAllString(strings.Join(texts, " "), -1)
	if dates == nil {
		dates = []string{}
	}
	return dates, nil
}
