package notifier

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/Geordiekingsbeer/stripe-serverless/pkg/events"
)

var staffEmail = template.Must(template.New("staff").Parse(
	`<h2>Premium Booking Confirmed</h2>` +
		`<p>The following premium booking(s) were created:</p><ul>` +
		`{{range .Lines}}<li><strong>Table {{.Table}}</strong> — {{.Date}} {{.Start}}–{{.End}}</li>{{end}}</ul>` +
		`{{if .Customer}}<p><strong>Customer:</strong> {{.Customer}}</p>{{end}}` +
		`<p><strong>Notes:</strong> {{.Notes}}</p>` +
		`<p>Reference: {{.Ref}}</p>`))

type line struct {
	Table            int
	Date, Start, End string
}

type view struct {
	Lines    []line
	Customer string
	Notes    string
	Ref      string
}

func hhmm(t string) string {
	if len(t) >= 5 {
		return t[:5]
	}
	return t
}

// Subject names the table, or the table count for multi-table bookings.
func Subject(n events.BookingNotice) string {
	if len(n.Slots) == 1 {
		return fmt.Sprintf("Premium Booking Confirmed — Table %d", n.Slots[0].TableID)
	}
	return fmt.Sprintf("Premium Booking Confirmed — %d tables", len(n.Slots))
}

// Render builds the staff email for a notice addressed to to.
func Render(n events.BookingNotice, to string) (Message, error) {
	v := view{Ref: n.BookingRef}
	var notes, text []string
	seen := map[string]bool{}
	for _, s := range n.Slots {
		l := line{Table: s.TableID, Date: s.Date, Start: hhmm(s.StartTime), End: hhmm(s.EndTime)}
		v.Lines = append(v.Lines, l)
		text = append(text, fmt.Sprintf("Table %d: %s %s-%s", l.Table, l.Date, l.Start, l.End))
		if s.HostNotes != "" && !seen[s.HostNotes] {
			seen[s.HostNotes] = true
			notes = append(notes, s.HostNotes)
		}
	}
	v.Notes = strings.Join(notes, " ; ")
	if n.CustomerName != "" {
		v.Customer = n.CustomerName
		if n.CustomerEmail != "" {
			v.Customer += " <" + n.CustomerEmail + ">"
		}
	}

	var b strings.Builder
	if err := staffEmail.Execute(&b, v); err != nil {
		return Message{}, fmt.Errorf("render staff email: %w", err)
	}
	return Message{
		To:      to,
		Subject: Subject(n),
		HTML:    b.String(),
		Text:    strings.Join(text, "\n") + "\nNotes: " + v.Notes,
	}, nil
}
