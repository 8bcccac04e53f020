package chunk

import "testing"

func TestDeriveID_Deterministic(t *testing.T) {
	a := DeriveID("eng", "u1", false, "doc.pdf", 3, "some text")
	b := DeriveID("eng", "u1", false, "doc.pdf", 3, "some text")
	if a != b {
		t.Errorf("same inputs produced different IDs: %q vs %q", a, b)
	}
	if len(a) != 32 {
		t.Errorf("expected 32 hex chars, got %q", a)
	}
}

func TestDeriveID_VariesWithLocationAndText(t *testing.T) {
	base := DeriveID("eng", "u1", false, "doc.pdf", 3, "some text")

	variants := map[string]string{
		"dept":   DeriveID("sales", "u1", false, "doc.pdf", 3, "some text"),
		"user":   DeriveID("eng", "u2", false, "doc.pdf", 3, "some text"),
		"source": DeriveID("eng", "u1", false, "other.pdf", 3, "some text"),
		"page":   DeriveID("eng", "u1", false, "doc.pdf", 4, "some text"),
		"text":   DeriveID("eng", "u1", false, "doc.pdf", 3, "other text"),
	}
	for name, id := range variants {
		if id == base {
			t.Errorf("changing %s did not change the ID", name)
		}
	}
}

func TestDeriveID_SharedIgnoresUploader(t *testing.T) {
	a := DeriveID("eng", "u1", true, "doc.pdf", 3, "some text")
	b := DeriveID("eng", "u2", true, "doc.pdf", 3, "some text")
	if a != b {
		t.Error("shared chunk identity should not depend on the uploader")
	}

	owned := DeriveID("eng", "u1", false, "doc.pdf", 3, "some text")
	if a == owned {
		t.Error("shared and owned chunks with the same content should have distinct IDs")
	}
}

func TestNew_DerivesID(t *testing.T) {
	c := New(Meta{Source: "doc.pdf", Page: 3, DeptID: "eng", UserID: "u1"}, "some text")
	if c.ID() != DeriveID("eng", "u1", false, "doc.pdf", 3, "some text") {
		t.Errorf("New did not derive the content ID, got %q", c.ID())
	}
}

func TestReconstruct_KeepsStoredID(t *testing.T) {
	c := Reconstruct("stored-id", Meta{Source: "doc.pdf", DeptID: "eng"}, "text")
	if c.ID() != "stored-id" {
		t.Errorf("Reconstruct rederived the ID: %q", c.ID())
	}
}
