package mathspan

import (
	"math/rand"
	"strings"
	"testing"
	"testing/quick"
)

func quickConfig() *quick.Config {
	return &quick.Config{
		MaxCount: 100,
		Rand:     rand.New(rand.NewSource(42)),
	}
}

func TestProtectFindsDelimitedRuns(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"inline dollar", "Energy $E=mc^2$ here", []string{"$E=mc^2$"}},
		{"display dollar", "see $$\\int x\\,dx$$ now", []string{"$$\\int x\\,dx$$"}},
		{"bracket display spans lines", "\\[a +\nb\\]", []string{"\\[a +\nb\\]"}},
		{"paren inline", "so \\(x\\) holds", []string{"\\(x\\)"}},
		{"two inline", "$x$ and $y$", []string{"$x$", "$y$"}},
		{"escaped dollars", "costs \\$5 and \\$6", nil},
		{"unclosed dollar", "price $5 only", nil},
		{"inline does not cross newline", "$a\nb$", nil},
		{"unclosed bracket", "\\[x + y", nil},
		{"plain", "no math at all", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, spans := Protect(tt.in)
			if len(spans) != len(tt.want) {
				t.Fatalf("got %d spans (%v), want %d", len(spans), spans, len(tt.want))
			}
			for i, s := range spans {
				if s.Original != tt.want[i] {
					t.Errorf("span %d = %q, want %q", i, s.Original, tt.want[i])
				}
				if !strings.Contains(out, s.Token) {
					t.Errorf("token %q missing from %q", s.Token, out)
				}
				if strings.Contains(out, s.Original) {
					t.Errorf("original %q still visible in %q", s.Original, out)
				}
			}
			if got := Restore(out, spans); got != tt.in {
				t.Errorf("Restore = %q, want %q", got, tt.in)
			}
		})
	}
}

func TestProtectorTokensStayUniqueAcrossPasses(t *testing.T) {
	p := NewProtector("a $x$ b")
	first := p.Protect("a $x$ b")
	second := p.Protect(first + " $y$")
	spans := p.Spans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].Token == spans[1].Token {
		t.Fatalf("duplicate token %q", spans[0].Token)
	}
	if got := p.Restore(second); got != "a $x$ b $y$" {
		t.Errorf("Restore = %q", got)
	}
}

func TestProtectorAvoidsRunesPresentInText(t *testing.T) {
	in := "odd \uE000\uE001 text $z$"
	p := NewProtector(in)
	out := p.Protect(in)
	for _, s := range p.Spans() {
		if strings.ContainsRune(s.Token, '\uE000') || strings.ContainsRune(s.Token, '\uE001') {
			t.Fatalf("token %q reuses a rune from the input", s.Token)
		}
	}
	if got := p.Restore(out); got != in {
		t.Errorf("Restore = %q, want %q", got, in)
	}
}

func TestContains(t *testing.T) {
	p := NewProtector("$q$")
	out := p.Protect("$q$")
	if !p.Contains(out) {
		t.Errorf("Contains(%q) = false", out)
	}
	if p.Contains("plain") {
		t.Error("Contains(plain) = true")
	}
}

func TestFindKinds(t *testing.T) {
	runs := Find("$a$ then $$b$$ then \\[c\\]")
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	want := []Kind{KindInline, KindDisplay, KindDisplay}
	for i, r := range runs {
		if r.Kind != want[i] {
			t.Errorf("run %d kind = %v, want %v", i, r.Kind, want[i])
		}
	}
}

func TestProtectRestoreRoundTrip(t *testing.T) {
	f := func(s string) bool {
		out, spans := Protect(s)
		return Restore(out, spans) == s
	}
	if err := quick.Check(f, quickConfig()); err != nil {
		t.Error(err)
	}
}

func TestProtectRestoreRoundTripMathHeavy(t *testing.T) {
	pieces := []string{"$x$", "$$y$$", "\\(z\\)", "\\[w\\]", "\\$", "$", "\\", "text ", "\n", "a=b "}
	f := func(idx []uint8) bool {
		var b strings.Builder
		for _, i := range idx {
			b.WriteString(pieces[int(i)%len(pieces)])
		}
		s := b.String()
		out, spans := Protect(s)
		return Restore(out, spans) == s
	}
	if err := quick.Check(f, quickConfig()); err != nil {
		t.Error(err)
	}
}
