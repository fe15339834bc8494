package jobs

import (
	"fmt"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/stonecrest/backoffice/internal/notify"
)

var printer = message.NewPrinter(language.AmericanEnglish)

var emailFuncs = template.FuncMap{
	"money": formatMoney,
	"title": titleCase,
}

type emailTemplate struct {
	name    string
	subject *template.Template
	body    *template.Template
}

func mustTemplate(name, subject, body string) emailTemplate {
	return emailTemplate{
		name:    name,
		subject: template.Must(template.New(name + ".subject").Funcs(emailFuncs).Parse(subject)),
		body:    template.Must(template.New(name + ".body").Funcs(emailFuncs).Parse(body)),
	}
}

var (
	quoteApproved = mustTemplate("quote_approved",
		`Quote {{.Number}} approved`,
		`Hello {{title .Name}},

Thank you for approving quote {{.Number}} for {{money .Total}}.
Our team will be in touch to schedule the work.

Stonecrest
`)
	invoiceCreated = mustTemplate("invoice_created",
		`Invoice {{.Number}} from Stonecrest`,
		`Hello {{title .Name}},

Invoice {{.Number}} for {{money .Total}} is due on {{.DueDate}}.

Stonecrest
`)
	invoicePaid = mustTemplate("invoice_paid",
		`Invoice {{.Number}} paid in full`,
		`Hello {{title .Name}},

We received full payment of {{money .Total}} for invoice {{.Number}}. Thank you.

Stonecrest
`)
)

type emailData struct {
	Number  string
	Name    string
	Total   float64
	DueDate string
}

// Compose renders the customer email for evt. ok is false when the event
// does not notify anyone.
func Compose(evt notify.Event) (msg SendEmailPayload, ok bool, err error) {
	var tpl emailTemplate
	switch evt.Type {
	case notify.QuoteStatusChanged:
		if dataString(evt, "to") != "Approved" {
			return SendEmailPayload{}, false, nil
		}
		tpl = quoteApproved
	case notify.InvoiceCreated:
		tpl = invoiceCreated
	case notify.InvoicePaid:
		tpl = invoicePaid
	default:
		return SendEmailPayload{}, false, nil
	}
	to := dataString(evt, "customer_email")
	if to == "" {
		return SendEmailPayload{}, false, nil
	}

	data := emailData{
		Number:  evt.Number,
		Name:    dataString(evt, "customer_name"),
		DueDate: dataString(evt, "due_date"),
	}
	if v, ok := evt.Data["total"].(float64); ok {
		data.Total = v
	}
	var subject, body strings.Builder
	if err := tpl.subject.Execute(&subject, data); err != nil {
		return SendEmailPayload{}, false, fmt.Errorf("render %s subject: %w", tpl.name, err)
	}
	if err := tpl.body.Execute(&body, data); err != nil {
		return SendEmailPayload{}, false, fmt.Errorf("render %s body: %w", tpl.name, err)
	}
	return SendEmailPayload{To: to, Subject: subject.String(), Body: body.String(), Template: tpl.name}, true, nil
}

func formatMoney(v float64) string {
	if v < 0 {
		return "-" + printer.Sprintf("$%.2f", -v)
	}
	return printer.Sprintf("$%.2f", v)
}

// Casers carry state, so each call gets its own.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func dataString(evt notify.Event, key string) string {
	s, _ := evt.Data[key].(string)
	return s
}
