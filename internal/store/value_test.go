package store

import "testing"

func TestAbsentIsNotEmptyValue(t *testing.T) {
	empty := NewValue([]byte{})
	absent := Absent()

	if empty.IsAbsent() {
		t.Fatalf("empty byte string must be a real value, not absent")
	}
	if !absent.IsAbsent() {
		t.Fatalf("Absent() must report absent")
	}
	if empty.Equal(absent) {
		t.Fatalf("empty value must not equal absent")
	}
}

func TestValueBytesIsACopy(t *testing.T) {
	data := []byte("hello")
	v := NewValue(data)
	data[0] = 'X'

	if string(v.Bytes()) != "hello" {
		t.Fatalf("NewValue must copy its input, got %q", v.Bytes())
	}

	out := v.Bytes()
	out[0] = 'Y'
	if string(v.Bytes()) != "hello" {
		t.Fatalf("Bytes() must return a fresh copy each call")
	}
}
