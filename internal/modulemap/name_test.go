package modulemap

import (
	"testing"

	"modmap/internal/label"
)

func TestModuleNameOverrideLastWins(t *testing.T) {
	tags := []string{"manual", "swift_module=A", "swift_module=B", "nocopts"}
	got, ok := ModuleNameOverride(tags)
	if !ok || got != "B" {
		t.Fatalf("ModuleNameOverride = %q, %v; want %q, true", got, ok, "B")
	}
}

func TestModuleNameOverrideIgnoresOtherKeys(t *testing.T) {
	tags := []string{"Swift_Module=A", "swift_module", "swift_modules=C", "x=swift_module=D"}
	if got, ok := ModuleNameOverride(tags); ok {
		t.Fatalf("unexpected override %q", got)
	}
}

func TestDefaultModuleName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "//third_party/zlib:zlib", want: "third_party_zlib_zlib"},
		{raw: "//:lib", want: "lib"},
		{raw: "//some-pkg/v1.2:my-lib", want: "some_pkg_v1_2_my_lib"},
		{raw: "@boringssl//src:crypto", want: "boringssl_src_crypto"},
		{raw: "//3rd:lib", want: "_3rd_lib"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := DefaultModuleName(label.MustParse(tt.raw)); got != tt.want {
				t.Fatalf("DefaultModuleName(%s) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDeriveModuleName(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		tags   []string
		want   string
		wantOK bool
	}{
		{name: "default", raw: "//a/b:c", want: "a_b_c", wantOK: true},
		{name: "override", raw: "//a/b:c", tags: []string{"swift_module=CLib"}, want: "CLib", wantOK: true},
		{name: "slash refused", raw: "//a:sub/c", wantOK: false},
		{name: "plus refused", raw: "//a:c+d", wantOK: false},
		{name: "override beats refusal", raw: "//a:sub/c", tags: []string{"swift_module=Sub"}, want: "Sub", wantOK: true},
		{name: "empty override refused", raw: "//a/b:c", tags: []string{"swift_module="}, wantOK: false},
		{name: "override with space refused", raw: "//a/b:c", tags: []string{"swift_module=C Lib"}, want: "C Lib", wantOK: false},
		{name: "override with brace refused", raw: "//a/b:c", tags: []string{"swift_module=CLib}"}, want: "CLib}", wantOK: false},
		{name: "later valid override wins", raw: "//a/b:c", tags: []string{"swift_module=C Lib", "swift_module=CLib"}, want: "CLib", wantOK: true},
		{name: "punctuation in name refused", raw: "//a:c(x)", want: "a_c(x)", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DeriveModuleName(label.MustParse(tt.raw), tt.tags)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("DeriveModuleName = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestIsModuleIdentifier(t *testing.T) {
	good := []string{"a", "_x", "CZlib", "lib_2", "Ünï"}
	bad := []string{"", "2lib", "a b", "a{", "a\"b", "a-b", "a.b"}
	for _, s := range good {
		if !IsModuleIdentifier(s) {
			t.Errorf("IsModuleIdentifier(%q) = false, want true", s)
		}
	}
	for _, s := range bad {
		if IsModuleIdentifier(s) {
			t.Errorf("IsModuleIdentifier(%q) = true, want false", s)
		}
	}
}
