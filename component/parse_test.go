package component

import "testing"

func TestParseComponentScalars(t *testing.T) {
	cases := []struct {
		id   TypeID
		text string
		want Component
	}{
		{TypeInt, "42", Int(42)},
		{TypeFloat, "3.5", Float(3.5)},
		{TypeBool, "on", Bool(true)},
		{TypeBool, "off", Bool(false)},
		{TypeText, "hello", Text("hello")},
		{TypeDimmer, "80", Dimmer(80)},
	}
	for _, c := range cases {
		got, err := ParseComponent(c.id, c.text)
		if err != nil {
			t.Fatalf("ParseComponent(%d, %q): %v", c.id, c.text, err)
		}
		if got != c.want {
			t.Fatalf("ParseComponent(%d, %q) = %v, want %v", c.id, c.text, got, c.want)
		}
	}
}

func TestParseComponentLockStates(t *testing.T) {
	got, err := ParseComponent(TypeLock, "locked")
	if err != nil {
		t.Fatalf("ParseComponent: %v", err)
	}
	if got.(Lock).State != LockLocked {
		t.Fatalf("got %+v, want locked", got)
	}
}

func TestParseComponentRejectsInvalidBool(t *testing.T) {
	if _, err := ParseComponent(TypeBool, "maybe"); err == nil {
		t.Fatal("expected error for invalid bool text")
	}
}

func TestParseComponentRejectsComposite(t *testing.T) {
	if _, err := ParseComponent(TypeList, "[1,2,3]"); err == nil {
		t.Fatal("expected error for composite text form")
	}
}
