package apphash

import "testing"

func TestCompute(t *testing.T) {
	hash, err := Compute("com.example.app", "fa:ke:ce:rt")
	if err != nil {
		t.Fatal(err)
	}
	if len(hash) != Length {
		t.Fatalf("len=%d, want %d", len(hash), Length)
	}

	again, err := Compute("com.example.app", "fa:ke:ce:rt")
	if err != nil {
		t.Fatal(err)
	}
	if again != hash {
		t.Fatalf("not deterministic: %q vs %q", again, hash)
	}

	other, err := Compute("com.example.other", "fa:ke:ce:rt")
	if err != nil {
		t.Fatal(err)
	}
	if other == hash {
		t.Fatal("different packages produced same hash")
	}
}

func TestComputeRequiresInputs(t *testing.T) {
	if _, err := Compute("", "cert"); err == nil {
		t.Fatal("empty package accepted")
	}
	if _, err := Compute("com.example.app", "  "); err == nil {
		t.Fatal("blank cert accepted")
	}
}

func TestContains(t *testing.T) {
	body := "Your code is 1234\nFA+9qCX9VSu"
	if !Contains(body, "FA+9qCX9VSu") {
		t.Fatal("token not found")
	}
	if Contains(body, "FA+9qCX9VSX") {
		t.Fatal("wrong token matched")
	}
	if Contains(body, "") {
		t.Fatal("empty hash matched")
	}
	// Partial tokens never match.
	if Contains(body, "FA+9qCX9") {
		t.Fatal("prefix matched")
	}
}
