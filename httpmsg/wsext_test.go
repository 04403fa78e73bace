package httpmsg

import "testing"

func TestParseWSExtensionsPermessageDeflate(t *testing.T) {
	got := ParseWSExtensions("permessage-deflate; client_max_window_bits")
	if got != WSExtPermessageDeflate {
		t.Fatalf("ParseWSExtensions() = %v, want WSExtPermessageDeflate", got)
	}
}

func TestParseWSExtensionsMultipleTokens(t *testing.T) {
	got := ParseWSExtensions("foo-ext, permessage-deflate, bar-ext")
	if got&WSExtPermessageDeflate == 0 {
		t.Fatalf("ParseWSExtensions() = %v, want permessage-deflate bit set", got)
	}
	if got&WSExtOther == 0 {
		t.Fatalf("ParseWSExtensions() = %v, want other bit set for unrecognized tokens", got)
	}
}

func TestParseWSExtensionsEmpty(t *testing.T) {
	if got := ParseWSExtensions(""); got != WSExtNone {
		t.Fatalf("ParseWSExtensions(\"\") = %v, want WSExtNone", got)
	}
}
