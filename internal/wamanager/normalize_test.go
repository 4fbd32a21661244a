package wamanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeJid(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		// bare numbers lose formatting and get the user suffix
		{"5511999999999", "5511999999999@s.whatsapp.net"},
		{"+55 11 99999-9999", "5511999999999@s.whatsapp.net"},
		{"(11) 98888-0000", "11988880000@s.whatsapp.net"},
		// group serials keep the separator and get the group suffix
		{"5511988880000-1556565889", "5511988880000-1556565889@g.us"},
		{"120363041234567890-99", "120363041234567890-99@g.us"},
		// anything already carrying a domain passes through
		{"5511999999999@s.whatsapp.net", "5511999999999@s.whatsapp.net"},
		{"123-456@g.us", "123-456@g.us"},
		{"weird@c.us", "weird@c.us"},
		// whitespace only trimmed, empty stays empty
		{"  5511999999999  ", "5511999999999@s.whatsapp.net"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeJid(tc.in), "input %q", tc.in)
	}
}

func TestGroupSerialDiscriminant(t *testing.T) {
	// a dash inside a formatted phone number is not a group separator
	_, ok := groupSerial("99999-9999")
	assert.False(t, ok)

	// a full creator number on either side qualifies
	_, ok = groupSerial("5511988880000-15")
	assert.True(t, ok)
	_, ok = groupSerial("15-5511988880000")
	assert.True(t, ok)

	// two separators never qualify
	_, ok = groupSerial("12345678901-2-3")
	assert.False(t, ok)
}
