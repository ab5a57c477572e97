package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransferValueRoundTrip(t *testing.T) {
	v := TransferValue(7, 42)
	assert.Equal(t, "7 -> 42", v)

	from, to, ok := ParseTransferValue(v)
	assert.True(t, ok)
	assert.EqualValues(t, 7, from)
	assert.EqualValues(t, 42, to)
}

func TestParseTransferValueRejectsGarbage(t *testing.T) {
	for _, v := range []string{"", "7", "a -> b", "7 -> 42 -> 9", "->"} {
		_, _, ok := ParseTransferValue(v)
		assert.False(t, ok, "value %q should not parse", v)
	}
}

func TestValidateSafeChars(t *testing.T) {
	assert.True(t, ValidateSafeChars("2346789B"))
	assert.True(t, ValidateSafeChars("X"))

	assert.False(t, ValidateSafeChars(""), "empty code")
	assert.False(t, ValidateSafeChars("2346789BC"), "too long")
	assert.False(t, ValidateSafeChars("ABCD"), "A is ambiguous and excluded")
	assert.False(t, ValidateSafeChars("23o4"), "lowercase not allowed")
	assert.False(t, ValidateSafeChars("23 4"), "whitespace not allowed")
	assert.False(t, ValidateSafeChars("../x"), "path characters rejected")
}

func TestSafeCharsExcludeAmbiguousGlyphs(t *testing.T) {
	for _, r := range "01IL5SAENZUO" {
		assert.False(t, strings.ContainsRune(SafeChars, r), "%c must not be in the alphabet", r)
	}
}

func TestTicketTypeOnSale(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	token := "crew"

	open := &TicketType{SalesStart: &past, SalesEnd: &future}
	assert.True(t, open.OnSale(now, ""))

	closed := &TicketType{SalesEnd: &past}
	assert.False(t, closed.OnSale(now, ""))

	notYet := &TicketType{SalesStart: &future}
	assert.False(t, notYet.OnSale(now, ""))

	gated := &TicketType{Token: &token}
	assert.False(t, gated.OnSale(now, ""))
	assert.False(t, gated.OnSale(now, "wrong"))
	assert.True(t, gated.OnSale(now, "crew"))
}

func TestRequiresForm(t *testing.T) {
	assert.True(t, (&TicketType{Admits: AdmitsFull}).RequiresForm())
	assert.True(t, (&TicketType{Admits: AdmitsKids}).RequiresForm())
	assert.False(t, (&TicketType{Admits: AdmitsCar}).RequiresForm())
	assert.False(t, (&TicketType{Admits: AdmitsCampervan}).RequiresForm())
	assert.False(t, (&TicketType{Admits: AdmitsDonation}).RequiresForm())
}
