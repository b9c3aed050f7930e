package auth

import "testing"

func TestPercentEncode(t *testing.T) {
	cases := []struct {
		name string
		in   string
		safe string
		want string
	}{
		{"path slashes escaped", "/devices/", "", "%2Fdevices%2F"},
		{"unreserved untouched", "AZaz09_.-~", "", "AZaz09_.-~"},
		{"json body with body safe set", `{"a":"b c"}`, bodySafe, "%7B%22a%22%3A%22b%20c%22%7D"},
		{"body safe characters kept", "()!*'", bodySafe, "()!*'"},
		{"body safe characters escaped without safe set", "()!*'", "", "%28%29%21%2A%27"},
		{"utf8 bytes escaped individually", "é", "", "%C3%A9"},
		{"plus and equals escaped", "a+b=c", "", "a%2Bb%3Dc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := percentEncode(tc.in, tc.safe); got != tc.want {
				t.Fatalf("percentEncode(%q, %q) = %q, want %q", tc.in, tc.safe, got, tc.want)
			}
		})
	}
}

func TestSigningString(t *testing.T) {
	cases := []struct {
		name   string
		count  uint64
		method string
		path   string
		body   string
		want   string
	}{
		{"get has no body part", 3, "GET", "/devices/", `{"ignored":true}`, "3%2Fdevices%2F"},
		{"post appends encoded body", 6, "POST", "/1234/messages/", `{"x":1}`, "6%2F1234%2Fmessages%2F%7B%22x%22%3A1%7D"},
		{"delete with empty body", 9, "DELETE", "/devices/", "", "9%2Fdevices%2F"},
		{"delete with body", 2, "DELETE", "/42/messages/", `[1]`, "2%2F42%2Fmessages%2F%5B1%5D"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SigningString(tc.count, tc.method, tc.path, []byte(tc.body))
			if got != tc.want {
				t.Fatalf("SigningString = %q, want %q", got, tc.want)
			}
		})
	}
}
