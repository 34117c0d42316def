package billing

import (
	"strings"
)

// markdown escapes the characters Telegram's legacy Markdown treats as
// entity delimiters.
var markdown = strings.NewReplacer(
	`_`, `\_`,
	`*`, `\*`,
	"`", "\\`",
	`[`, `\[`,
)

// Message renders the merchant notification for r in Telegram Markdown.
// Buyer-supplied values are escaped.
func Message(r Record) string {
	d := r.Details
	symbol := "$"
	if d.Currency == "INR" {
		symbol = "₹"
	}
	amount := "N/A"
	if !d.Amount.IsZero() {
		amount = d.Amount.String()
	}
	esc := markdown.Replace

	var b strings.Builder
	b.WriteString("🔔 *New Payment Notification*\n\n")
	b.WriteString("📄 *Order Details:*\n")
	b.WriteString("🆔 Order ID: " + esc(r.OrderID) + "\n")
	b.WriteString("📦 Item: " + esc(orNA(d.Item)) + "\n")
	b.WriteString("💰 Amount: " + symbol + " " + amount + "\n")
	b.WriteString("💳 Payment Method: " + esc(orNA(r.Mode)) + "\n")
	b.WriteString("📊 Status: PAYMENT " + strings.ToUpper(r.Status) + "\n\n")
	b.WriteString("👤 *Customer Details:*\n")
	b.WriteString("👤 Name: " + esc(d.FirstName) + " " + esc(d.LastName) + "\n")
	b.WriteString("📧 Email: " + esc(d.Email) + "\n")
	b.WriteString("📞 Mobile: " + esc(d.Phone) + "\n")
	b.WriteString("📍 Location: " + esc(d.City) + ", " + esc(d.State) + ", " + esc(d.Country) + "\n")
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
