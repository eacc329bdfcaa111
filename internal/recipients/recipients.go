// Package recipients reads and normalises the recipient lists that campaigns are sent to.
package recipients

import (
	"strings"
)

// Raw is a recipient as it appears in an uploaded list.
type Raw struct {
	Phone string
	Name  string
}

// Row is a normalised recipient. RecipientID contains only the digits 0-9.
type Row struct {
	RecipientID string `json:"recipientId"`
	DisplayName string `json:"displayName"`
}

// Normalize strips everything but ASCII digits from phone numbers, trims names, drops rows without digits and
// keeps the first occurrence of each recipient id.
func Normalize(raw []Raw) []Row {
	rows := make([]Row, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		id := digits(r.Phone)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		rows = append(rows, Row{RecipientID: id, DisplayName: strings.TrimSpace(r.Name)})
	}
	return rows
}

func digits(s string) string {
	var b strings.Builder
	for i := range len(s) {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
