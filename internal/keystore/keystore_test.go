package keystore

import (
	"bytes"
	"errors"
	"testing"
)

func TestAddGetRoundTrip(t *testing.T) {
	ks := New()
	key := bytes.Repeat([]byte{0x42}, 16)

	if err := ks.Add(0xA3F91C42, key); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, ok := ks.Get(0xA3F91C42)
	if !ok {
		t.Fatal("Get: key not found")
	}
	if !bytes.Equal(got, key) {
		t.Fatalf("Get = %x, want %x", got, key)
	}
	if !ks.Has(0xA3F91C42) {
		t.Fatal("Has = false, want true")
	}
}

func TestGetMissing(t *testing.T) {
	ks := New()
	if _, ok := ks.Get(1); ok {
		t.Fatal("Get: ok = true for missing sender")
	}
	if ks.Has(1) {
		t.Fatal("Has: true for missing sender")
	}
}

func TestAddInvalidKeySize(t *testing.T) {
	ks := New()
	var want ErrInvalidKeySize
	if err := ks.Add(1, make([]byte, 10)); !errors.As(err, &want) {
		t.Fatalf("got %v, want ErrInvalidKeySize", err)
	}
	for _, n := range []int{16, 24, 32} {
		if err := ks.Add(uint32(n), make([]byte, n)); err != nil {
			t.Fatalf("Add with %d-byte key: %v", n, err)
		}
	}
}

func TestAddOverwrite(t *testing.T) {
	ks := New()
	if err := ks.Add(1, bytes.Repeat([]byte{0x01}, 16)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := ks.Add(1, bytes.Repeat([]byte{0x02}, 16)); err != nil {
		t.Fatalf("Add overwrite: %v", err)
	}
	got, _ := ks.Get(1)
	if !bytes.Equal(got, bytes.Repeat([]byte{0x02}, 16)) {
		t.Fatalf("Get after overwrite = %x", got)
	}
	if ks.Len() != 1 {
		t.Fatalf("Len = %d, want 1", ks.Len())
	}
}

func TestGetReturnsCopy(t *testing.T) {
	ks := New()
	ks.Add(1, bytes.Repeat([]byte{0x01}, 16))

	got, _ := ks.Get(1)
	got[0] = 0xFF

	again, _ := ks.Get(1)
	if again[0] == 0xFF {
		t.Fatal("mutating Get's result affected the store")
	}
}
