// Package payment builds deep-link URLs for settling a member's balance
// through an external payment app. The builders are read-only: paying is
// out-of-band, and the balance is reset afterwards through the ordinary
// member-update path.
package payment

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/gorber/veckopeng/internal/ledger"
	"github.com/gorber/veckopeng/internal/model"
)

const defaultNote = "Veckopeng"

// amountString renders minor currency units as the decimal string the
// payment apps expect, e.g. 2550 -> "25.50", 5000 -> "50".
func amountString(minor int64) string {
	if minor%100 == 0 {
		return fmt.Sprintf("%d", minor/100)
	}
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}

// SwishURL builds a swish:// deep link. Swish encodes the payment request
// as a JSON document in the data query parameter.
func SwishURL(phoneNumber string, amountMinor int64, message string) (string, error) {
	if message == "" {
		message = defaultNote
	}
	data, err := json.Marshal(map[string]any{
		"version": 1,
		"payee":   map[string]string{"value": phoneNumber},
		"amount":  map[string]string{"value": amountString(amountMinor)},
		"message": map[string]string{"value": message},
	})
	if err != nil {
		return "", fmt.Errorf("marshal swish payload: %w", err)
	}
	return "swish://payment?data=" + url.QueryEscape(string(data)), nil
}

// VenmoURL builds a venmo:// pay deep link.
func VenmoURL(username string, amountMinor int64, note string) string {
	if note == "" {
		note = defaultNote
	}
	return "venmo://paycharge?txn=pay&recipients=" + url.QueryEscape(username) +
		"&amount=" + url.QueryEscape(amountString(amountMinor)) +
		"&note=" + url.QueryEscape(note)
}

// CashAppURL builds a cashapp:// send deep link.
func CashAppURL(cashtag string, amountMinor int64, note string) string {
	if note == "" {
		note = defaultNote
	}
	return "cashapp://send?amount=" + url.QueryEscape(amountString(amountMinor)) +
		"&recipient=" + url.QueryEscape(cashtag) +
		"&note=" + url.QueryEscape(note)
}

var (
	paypalMePrefix   = regexp.MustCompile(`(?i)^https?://(www\.)?paypal\.me/`)
	paypalComPrefix  = regexp.MustCompile(`(?i)^https?://(www\.)?paypal\.com/paypalme/`)
	paypalHandleStop = regexp.MustCompile(`[/?#]`)
)

// PayPalURL builds a paypal.me link like https://paypal.me/user/25.50SEK.
// The handle is normalized so "gorber69", "@gorber69",
// "https://paypal.me/gorber69" and "https://www.paypal.com/paypalme/gorber69/"
// all resolve to the same username.
func PayPalURL(handle string, amountMinor int64, currency string) string {
	cleaned := strings.TrimSpace(handle)
	cleaned = paypalMePrefix.ReplaceAllString(cleaned, "")
	cleaned = paypalComPrefix.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimPrefix(cleaned, "@")
	if loc := paypalHandleStop.FindStringIndex(cleaned); loc != nil {
		cleaned = cleaned[:loc[0]]
	}

	if currency == "" {
		currency = "SEK"
	}
	currency = strings.ToUpper(currency)

	return "https://paypal.me/" + url.PathEscape(cleaned) + "/" +
		url.PathEscape(amountString(amountMinor)+currency)
}

// LinkFor builds the deep link for a member's current balance using their
// configured payment method and handle.
func LinkFor(m model.Member) (string, error) {
	if m.PaymentHandle == "" {
		return "", fmt.Errorf("member %s has no payment handle: %w", m.ID, ledger.ErrValidation)
	}
	if m.Balance <= 0 {
		return "", fmt.Errorf("member %s has nothing to pay out: %w", m.ID, ledger.ErrValidation)
	}

	switch m.PaymentMethod {
	case model.PaymentSwish:
		return SwishURL(m.PaymentHandle, m.Balance, "")
	case model.PaymentVenmo:
		return VenmoURL(m.PaymentHandle, m.Balance, ""), nil
	case model.PaymentCashApp:
		return CashAppURL(m.PaymentHandle, m.Balance, ""), nil
	case model.PaymentPayPal:
		return PayPalURL(m.PaymentHandle, m.Balance, m.Currency), nil
	}
	return "", fmt.Errorf("member %s has no payment method configured: %w", m.ID, ledger.ErrValidation)
}
