package wamanager

import "strings"

const (
	userSuffix  = "@s.whatsapp.net"
	groupSuffix = "@g.us"
)

// NormalizeJid converts a user-supplied address into the network's
// addressing form. Pure and deterministic; applied identically at
// every call site accepting an address.
//
//	"+55 11 99999-9999"          -> "5511999999999@s.whatsapp.net"
//	"5511988880000-1556565889"   -> "5511988880000-1556565889@g.us"
//	"x@s.whatsapp.net"           -> unchanged
func NormalizeJid(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return addr
	}
	// already carries a domain suffix, pass through
	if strings.Contains(addr, "@") {
		return addr
	}
	// group serials keep their separator; phone numbers lose every
	// formatting character
	if cleaned, ok := groupSerial(addr); ok {
		return cleaned + groupSuffix
	}
	return stripDigits(addr) + userSuffix
}

// groupSerial reports whether the address is a group id: two digit
// runs joined by a separator, where at least one run is a full
// creator-number or timestamp (>= 10 digits). A dash inside a
// formatted phone number ("99999-9999") never qualifies.
func groupSerial(addr string) (string, bool) {
	cleaned := stripExceptDash(addr)
	i := strings.Index(cleaned, "-")
	if i <= 0 || i >= len(cleaned)-1 {
		return "", false
	}
	left, right := cleaned[:i], cleaned[i+1:]
	if strings.Contains(right, "-") {
		return "", false
	}
	if len(left) >= 10 || len(right) >= 10 {
		return cleaned, true
	}
	return "", false
}

func stripDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripExceptDash(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
