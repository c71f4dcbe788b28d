package checksum

import "testing"

func TestSumStable(t *testing.T) {
	a := Sum([]byte("hello"))
	if a != Sum([]byte("hello")) {
		t.Fatal("sum not deterministic")
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64", len(a))
	}
	if a == Sum([]byte("hello!")) {
		t.Error("different input produced same sum")
	}
}

func TestMatchesStripsETagDecoration(t *testing.T) {
	data := []byte("v1")
	sum := Sum(data)
	for _, tok := range []string{sum, `"` + sum + `"`, `W/"` + sum + `"`, " " + sum + " "} {
		if !Matches(tok, data) {
			t.Errorf("Matches(%q) = false", tok)
		}
	}
	if Matches("deadbeef", data) {
		t.Error("wrong token matched")
	}
}
