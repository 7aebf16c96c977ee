package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

// Message is one inbox entry scraped from the messages page.
type Message struct {
	ID      string
	Number  string
	Service string
	Text    string
	Time    string
	OTP     string
}

// Forwarded message bodies are truncated to keep notifications readable.
const maxForwardedTextLen = 400

// otpPattern matches the first standalone 4-8 digit group in a message body.
var otpPattern = regexp.MustCompile(`\b(\d{4,8})\b`)

// extractOTP returns the first OTP-looking code in text, or "" if none.
func extractOTP(text string) string {
	m := otpPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// syntheticID derives a stable message id from the element's text content,
// for sites that expose no id attribute on message rows.
func syntheticID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:32]
}

// formatMessage builds the Telegram notification text for one inbox message.
func formatMessage(msg Message) string {
	ts := msg.Time
	if ts == "" {
		ts = time.Now().UTC().Format(time.RFC3339)
	}

	if msg.OTP != "" {
		return fmt.Sprintf(
			"⭐ NEW OTP RECEIVED! ⭐\n"+
				"-------------------------------------\n"+
				"🔢 Virtual Number: %s\n"+
				"📦 Service: %s\n"+
				"🔑 OTP Code: `%s`\n"+
				"⏰ Time: %s\n"+
				"-------------------------------------",
			msg.Number, msg.Service, msg.OTP, ts)
	}

	text := msg.Text
	if r := []rune(text); len(r) > maxForwardedTextLen {
		text = string(r[:maxForwardedTextLen])
	}
	return fmt.Sprintf(
		"⭐ NEW MESSAGE (no OTP detected) ⭐\n"+
			"-------------------------------------\n"+
			"🔢 Virtual Number: %s\n"+
			"📦 Service: %s\n"+
			"📩 Message: %s\n"+
			"⏰ Time: %s\n"+
			"-------------------------------------",
		msg.Number, msg.Service, text, ts)
}
