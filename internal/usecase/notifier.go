package usecase

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"slices"
	"strings"
	"time"

	"DecreeWatcher/internal/domain"
	"DecreeWatcher/internal/ports"
)

var digestHTML = template.Must(template.New("digest").Parse(`<html>
<body>
<p>Prezados,</p>
<p><b>Foram encontradas {{.Count}} nova(s) publicação(ões) do Decreto {{.SearchTerm}} no Diário Oficial:</b></p>
<ul>
{{- range .Dates}}
<li>{{.}}</li>
{{- end}}
</ul>
<p>Consulte os detalhes no <a href="{{.SourceURL}}">Diário Oficial</a>.</p>
<p><em>Mensagem automática gerada em {{.GeneratedAt}}</em></p>
</body>
</html>
`))

// NotifierDeps carries the collaborators of Notifier.
type NotifierDeps struct {
	Mailer     ports.Mailer
	Recipients []string
	SourceURL  string
	Location   *time.Location
	Now        func() time.Time
	Logger     *slog.Logger
}

// Notifier sends one digest per run listing the newly discovered dates.
type Notifier struct {
	mailer     ports.Mailer
	recipients []string
	sourceURL  string
	loc        *time.Location
	now        func() time.Time
	logger     *slog.Logger
}

// NewNotifier builds a Notifier; Location defaults to UTC and Now to time.Now.
func NewNotifier(deps NotifierDeps) *Notifier {
	n := &Notifier{
		mailer:     deps.Mailer,
		recipients: deps.Recipients,
		sourceURL:  deps.SourceURL,
		loc:        deps.Location,
		now:        deps.Now,
		logger:     deps.Logger,
	}
	if n.loc == nil {
		n.loc = time.UTC
	}
	if n.now == nil {
		n.now = time.Now
	}
	if n.logger == nil {
		n.logger = slog.New(slog.DiscardHandler)
	}
	return n
}

// WithLogger returns a copy of the notifier logging through logger.
func (n *Notifier) WithLogger(logger *slog.Logger) *Notifier {
	clone := *n
	clone.logger = logger
	return &clone
}

// Notify mails the digest. Empty input is a no-op. Delivery failures are returned
// wrapped in domain.ErrNotificationDelivery and are not retried.
func (n *Notifier) Notify(ctx context.Context, newDates []time.Time, searchTerm string) error {
	if len(newDates) == 0 {
		n.logger.Info("nothing to notify", "search_term", searchTerm)
		return nil
	}
	if n.mailer == nil {
		return fmt.Errorf("%w: no mail transport configured", domain.ErrNotificationDelivery)
	}

	msg, err := n.Compose(newDates, searchTerm)
	if err != nil {
		return fmt.Errorf("%w: compose: %w", domain.ErrNotificationDelivery, err)
	}

	if err := n.mailer.Send(ctx, msg); err != nil {
		n.logger.Error("notification failed", "error", err, "recipients", len(msg.To), "dates", len(newDates))
		return fmt.Errorf("%w: %w", domain.ErrNotificationDelivery, err)
	}

	n.logger.Info("notification sent", "recipients", len(msg.To), "dates", len(newDates))
	return nil
}

// Compose renders the digest message without sending it.
func (n *Notifier) Compose(newDates []time.Time, searchTerm string) (ports.Message, error) {
	sorted := slices.Clone(newDates)
	slices.SortFunc(sorted, func(a, b time.Time) int { return b.Compare(a) })
	dates := domain.FormatDates(sorted, domain.DateLayout)
	generatedAt := n.now().In(n.loc).Format("02/01/2006 às 15:04:05")

	var text strings.Builder
	fmt.Fprintf(&text, "Foram encontradas %d nova(s) publicação(ões) do Decreto %s no Diário Oficial:\n\n", len(dates), searchTerm)
	for _, d := range dates {
		fmt.Fprintf(&text, "- %s\n", d)
	}
	fmt.Fprintf(&text, "\nConsulte os detalhes em %s\n\nMensagem automática gerada em %s\n", n.sourceURL, generatedAt)

	var html bytes.Buffer
	err := digestHTML.Execute(&html, map[string]any{
		"Count":       len(dates),
		"SearchTerm":  searchTerm,
		"Dates":       dates,
		"SourceURL":   n.sourceURL,
		"GeneratedAt": generatedAt,
	})
	if err != nil {
		return ports.Message{}, err
	}

	return ports.Message{
		To:      slices.Clone(n.recipients),
		Subject: fmt.Sprintf("ALERTA: Novas publicações do Decreto %s", searchTerm),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
