package value

import "testing"

func TestAsWidening(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		to   Kind
		want Value
	}{
		{"bool to int true", Bool(true), Integer, Int(1)},
		{"bool to int false", Bool(false), Integer, Int(0)},
		{"bool to number", Bool(true), Number, Num(1)},
		{"int to number", Int(7), Number, Num(7)},
		{"int to bool", Int(0), Boolean, Bool(false)},
		{"number to bool", Num(2.5), Boolean, Bool(true)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := c.v.As(c.to)
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if got != c.want {
				t.Fatalf("got %+v, want %+v", got, c.want)
			}
		})
	}
}

func TestAsRejectsNumberToInteger(t *testing.T) {
	if _, err := Num(1.5).As(Integer); err == nil {
		t.Fatal("expected error narrowing number to integer")
	}
}

func TestAsRejectsStringWidening(t *testing.T) {
	if _, err := Str("x").As(Integer); err == nil {
		t.Fatal("expected error widening string to integer")
	}
}

func TestAsNumber(t *testing.T) {
	n, err := Bool(true).AsNumber()
	if err != nil || n != 1 {
		t.Fatalf("got %v, %v", n, err)
	}
	if _, err := Str("x").AsNumber(); err == nil {
		t.Fatal("expected error")
	}
}

func TestAsInt(t *testing.T) {
	i, err := Bool(true).AsInt()
	if err != nil || i != 1 {
		t.Fatalf("got %v, %v", i, err)
	}
	if _, err := Num(1.0).AsInt(); err == nil {
		t.Fatal("expected error narrowing number to integer")
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Bool(true), "true"},
		{Bool(false), "false"},
		{Int(42), "42"},
		{Num(1.5), "1.500000"},
		{Str("hi"), `"hi"`},
		{Ident("motor"), "motor"},
	}
	for _, c := range cases {
		if got := c.v.Format(); got != c.want {
			t.Fatalf("Format(%+v) = %q, want %q", c.v, got, c.want)
		}
	}
}

func TestParseLiteral(t *testing.T) {
	cases := []struct {
		token string
		want  Value
	}{
		{"true", Bool(true)},
		{"false", Bool(false)},
		{`"hi"`, Str("hi")},
		{"42", Int(42)},
		{"1.5", Num(1.5)},
		{"bareword", Str("bareword")},
	}
	for _, c := range cases {
		if got := ParseLiteral(c.token); got != c.want {
			t.Fatalf("ParseLiteral(%q) = %+v, want %+v", c.token, got, c.want)
		}
	}
}

func TestZero(t *testing.T) {
	if Zero(Boolean) != Bool(false) {
		t.Fatal("zero boolean should be false")
	}
	if Zero(String) != Str("") {
		t.Fatal("zero string should be empty")
	}
}
