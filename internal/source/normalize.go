package source

import (
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/worklist/internal/model"
)

// maxSummaryRunes caps the preview text stored on a Task.
const maxSummaryRunes = 240

// ParseSender splits a "Display Name <address>" header into its name and
// address. A header without a bracketed address is used as both parts,
// and an empty display name falls back to the address.
func ParseSender(header string) (name, address string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return model.UnknownActor, model.UnknownIdentifier
	}

	// RFC 5322 parse first, so quoted names and encoded words decode.
	if addr, err := mail.ParseAddress(header); err == nil {
		address = addr.Address
		name = strings.TrimSpace(addr.Name)
		if name == "" {
			name = address
		}
		return name, address
	}

	open := strings.LastIndex(header, "<")
	end := strings.LastIndex(header, ">")
	if open < 0 || end < open {
		return header, header
	}

	address = strings.TrimSpace(header[open+1 : end])
	if address == "" {
		return header, header
	}
	name = strings.Trim(strings.TrimSpace(header[:open]), `"'`)
	if name == "" {
		name = address
	}
	return name, address
}

// Actor normalizes a structured name/address pair using the same fallback
// rules as ParseSender.
func Actor(name, address string) (string, string) {
	name = strings.TrimSpace(name)
	address = strings.TrimSpace(address)
	switch {
	case name == "" && address == "":
		return model.UnknownActor, model.UnknownIdentifier
	case name == "":
		return address, address
	case address == "":
		return name, model.UnknownIdentifier
	default:
		return name, address
	}
}

// OrPlaceholder returns s trimmed, or placeholder when s is blank.
func OrPlaceholder(s, placeholder string) string {
	if s = strings.TrimSpace(s); s == "" {
		return placeholder
	}
	return s
}

// Summary collapses whitespace in s and caps its length.
func Summary(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxSummaryRunes {
		return s
	}
	return strings.TrimSpace(string(runes[:maxSummaryRunes-1])) + "…"
}

// ParseTime tries each layout in turn and returns fallback when raw is
// blank or matches none of them.
func ParseTime(raw string, fallback time.Time, layouts ...string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return fallback
}
