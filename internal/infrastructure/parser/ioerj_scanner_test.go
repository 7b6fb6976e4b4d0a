package parser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"DecreeWatcher/internal/domain"
	"DecreeWatcher/internal/scanner"
)

const resultPage = `
<html><body>
<form name="busca"><input name="textobusca"></form>
<table>
  <thead><tr><th>Data</th><th>Descrição</th></tr></thead>
  <tbody>
    <tr><td>12/03/2025</td><td>Decreto 46930 - republicação em 12/03/2025</td></tr>
    <tr><td>05/01/2025</td><td>Decreto 46930 de 02/01/2025</td></tr>
    <tr><td>sem data</td><td>1/2/2025 e 123/45/67890</td></tr>
  </tbody>
</table>
</body></html>`

func TestExtractDates(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resultPage))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	got, err := extractDates(doc)
	if err != nil {
		t.Fatalf("extractDates error: %v", err)
	}

	want := []string{"12/03/2025", "12/03/2025", "05/01/2025", "02/01/2025"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected dates: %v", got)
	}
}

func TestExtractDatesWithoutTable(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><body><p>Nenhum resultado</p></body></html>`))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	if _, err := extractDates(doc); !errors.Is(err, ErrResultsNotFound) {
		t.Fatalf("expected ErrResultsNotFound, got %v", err)
	}
}

func TestExtractDatesEmptyTable(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<table><tbody></tbody></table>`))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	got, err := extractDates(doc)
	if err != nil {
		t.Fatalf("extractDates error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no dates, got %v", got)
	}
}

func TestIOERJScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "form", http.StatusBadRequest)
			return
		}
		if r.Form.Get("textobusca") != "46930" || r.Form.Get("buscar") == "" {
			http.Error(w, "missing search", http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("acao") != "busca" {
			http.Error(w, "missing acao", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(resultPage))
	}))
	defer server.Close()

	sc := NewIOERJScanner(server.Client())

	got, err := sc.Scan(context.Background(), scanner.Request{
		SearchTerm: "46930",
		URL:        server.URL + "/busca_do.php?acao=busca",
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(got) != 4 || got[0] != "12/03/2025" || got[2] != "05/01/2025" {
		t.Fatalf("unexpected dates: %v", got)
	}
}

func TestIOERJScannerRejectsBadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sc := NewIOERJScanner(server.Client())
	_, err := sc.Scan(context.Background(), scanner.Request{SearchTerm: "46930", URL: server.URL})
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestIOERJScannerTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := server.Client()
	client.Timeout = 50 * time.Millisecond
	sc := NewIOERJScanner(client)

	if _, err := sc.Scan(context.Background(), scanner.Request{SearchTerm: "46930", URL: server.URL}); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestStrategySourceWrapsFetchErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>manutenção</body></html>`))
	}))
	defer server.Close()

	reg := scanner.NewRegistry()
	reg.Register(NewIOERJScanner(server.Client()))

	source := NewStrategySource(reg, SourceConfig{Scanner: "ioerj", URL: server.URL}, nil)
	_, err := source.Fetch(context.Background(), "46930")
	if !errors.Is(err, domain.ErrFetch) || !errors.Is(err, ErrResultsNotFound) {
		t.Fatalf("expected wrapped ErrFetch and ErrResultsNotFound, got %v", err)
	}

	unknown := NewStrategySource(reg, SourceConfig{Scanner: "dou"}, nil)
	if _, err := unknown.Fetch(context.Background(), "46930"); !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("expected ErrFetch for unknown scanner, got %v", err)
	}
}

func TestStrategySourceFetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(resultPage))
	}))
	defer server.Close()

	reg := scanner.NewRegistry()
	reg.Register(NewIOERJScanner(server.Client()))

	source := NewStrategySource(reg, SourceConfig{Scanner: "ioerj", URL: server.URL}, nil)
	got, err := source.Fetch(context.Background(), "46930")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 dates, got %v", got)
	}
}
