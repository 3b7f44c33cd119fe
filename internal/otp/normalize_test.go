package otp

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{"\t\n", ""},
		{"1234", "1234"},
		{"  code  1234  ", "code 1234"},
		{"line one\nline two", "line one line two"},
		{"a\t\tb\r\nc", "a b c"},
		{"ваш  код\n1234", "ваш код 1234"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Your OTP is 123456\nFA+9qCX9VNm",
		"  spaced\t\tout   message  ",
		"already normal",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Fatalf("not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}
