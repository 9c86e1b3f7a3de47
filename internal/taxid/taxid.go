// Package taxid handles Brazilian CPF (11 digits) and CNPJ (14 digits)
// taxpayer identifiers.
package taxid

import (
	"errors"
	"strings"
)

const (
	CPFLength  = 11
	CNPJLength = 14
)

// ErrInvalid is returned when the digits are neither a CPF nor a CNPJ.
var ErrInvalid = errors.New("CPF must have 11 digits or CNPJ must have 14 digits")

// Digits strips every non-digit character.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize returns the digits of s, or ErrInvalid when their count is not
// 11 or 14.
func Normalize(s string) (string, error) {
	d := Digits(s)
	if len(d) != CPFLength && len(d) != CNPJLength {
		return "", ErrInvalid
	}
	return d, nil
}

// IsCPF reports whether s holds exactly 11 digits once punctuation is removed.
func IsCPF(s string) bool { return len(Digits(s)) == CPFLength }

// IsCNPJ reports whether s holds exactly 14 digits once punctuation is removed.
func IsCNPJ(s string) bool { return len(Digits(s)) == CNPJLength }

// Format renders a CPF as 000.000.000-00 and a CNPJ as 00.000.000/0000-00.
// Anything else is returned unchanged.
func Format(s string) string {
	d := Digits(s)
	switch len(d) {
	case CPFLength:
		return d[:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:]
	case CNPJLength:
		return d[:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:]
	}
	return s
}
