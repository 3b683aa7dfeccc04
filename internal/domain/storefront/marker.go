package storefront

import "strings"

// Marker is a workflow tag written into the order's owner note
type Marker string

const (
	// MarkerAwaitingDifference flags an order waiting for the customer to pay the shortfall
	MarkerAwaitingDifference Marker = "#ESPERANDO_DIFERENCIA"
	// MarkerPendingPayment flags an order whose payment is still pending confirmation
	MarkerPendingPayment Marker = "#PENDIENTE_PAGO"
	// MarkerApproved flags an order already charged to the financing line
	MarkerApproved Marker = "#APROBADO_ARIA"
)

// KnownMarkers lists every marker the console manages
var KnownMarkers = []Marker{MarkerAwaitingDifference, MarkerPendingPayment, MarkerApproved}

// IsValid checks if the marker is one the console manages
func (m Marker) IsValid() bool {
	for _, k := range KnownMarkers {
		if m == k {
			return true
		}
	}
	return false
}

// String returns the string representation
func (m Marker) String() string {
	return string(m)
}

// ParseMarker accepts a marker with or without the leading '#', in any case
func ParseMarker(s string) (Marker, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	m := Marker(s)
	return m, m.IsValid()
}

// HasMarker reports whether note contains m anywhere, punctuation included
func HasMarker(note string, m Marker) bool {
	return strings.Contains(note, string(m))
}

// AddMarker appends m to note separated by one space. A note that already
// carries m is returned unchanged.
func AddMarker(note string, m Marker) string {
	if HasMarker(note, m) {
		return note
	}
	trimmed := strings.TrimSpace(note)
	if trimmed == "" {
		return string(m)
	}
	return trimmed + " " + string(m)
}

// RemoveMarker removes every occurrence of m from note. Lines that carried m
// have their whitespace collapsed and are dropped when nothing else is left;
// other lines are kept as they are.
func RemoveMarker(note string, m Marker) string {
	if !HasMarker(note, m) {
		return note
	}

	lines := strings.Split(note, "\n")
	out := lines[:0]
	for _, line := range lines {
		if strings.Contains(line, string(m)) {
			line = strings.Join(strings.Fields(strings.ReplaceAll(line, string(m), "")), " ")
			if line == "" {
				continue
			}
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Markers returns the known markers present in note, in KnownMarkers order
func Markers(note string) []Marker {
	found := make([]Marker, 0, len(KnownMarkers))
	for _, m := range KnownMarkers {
		if HasMarker(note, m) {
			found = append(found, m)
		}
	}
	return found
}

// StripMarkers returns note without any known marker
func StripMarkers(note string) string {
	for _, m := range KnownMarkers {
		note = RemoveMarker(note, m)
	}
	return note
}
