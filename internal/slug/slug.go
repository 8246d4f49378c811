// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug derives URL path segments for pages from their titles.
package slug

import (
	"strings"
	"unicode"
)

// MaxLen caps generated slugs; longer titles are cut at a word boundary.
const MaxLen = 80

// Generate creates a URL-friendly slug from the given string.
// Example: "Data Retention Policy (v2)" → "data-retention-policy-v2"
func Generate(s string) string {
	var b strings.Builder
	pendingHyphen := false

	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/':
			pendingHyphen = true
		}
	}

	out := b.String()
	if len(out) > MaxLen {
		out = out[:MaxLen]
		if i := strings.LastIndexByte(out, '-'); i > 0 {
			out = out[:i]
		}
	}
	return out
}
