package kernel

import (
	"slices"
	"strings"
	"testing"
)

func TestDeriveDeterministic(t *testing.T) {
	phrase := "abandon ability able about above absent absorb abstract"

	a := DeriveFromMnemonic(phrase)
	b := DeriveFromMnemonic(phrase)

	if a != b {
		t.Errorf("derivation not deterministic: %+v != %+v", a, b)
	}
}

func TestDeriveDistinctPhrases(t *testing.T) {
	a := DeriveFromMnemonic("one phrase")
	b := DeriveFromMnemonic("another phrase")

	if a.DID == b.DID {
		t.Error("distinct phrases derived the same DID")
	}
	if a.PublicKey == b.PublicKey {
		t.Error("distinct phrases derived the same public key")
	}
}

func TestDeriveShape(t *testing.T) {
	keys := DeriveFromMnemonic("test phrase")

	if !strings.HasPrefix(keys.DID, DIDPrefix) {
		t.Errorf("DID = %q, want prefix %q", keys.DID, DIDPrefix)
	}
	if len(keys.DID) != len(DIDPrefix)+32 {
		t.Errorf("DID length = %d, want prefix + 32 hex chars", len(keys.DID))
	}
	if len(keys.Seed) != 64 {
		t.Errorf("Seed length = %d, want 64 hex chars", len(keys.Seed))
	}
	if len(keys.PublicKey) != 64 || len(keys.PrivateKey) != 64 {
		t.Errorf("key lengths = %d/%d, want 64/64", len(keys.PublicKey), len(keys.PrivateKey))
	}
	if keys.PublicKey == keys.PrivateKey {
		t.Error("public and private key material are identical")
	}
}

func TestGenerateMnemonic(t *testing.T) {
	phrase, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic: %v", err)
	}

	words := strings.Fields(phrase)
	if len(words) != mnemonicWords {
		t.Fatalf("got %d words, want %d", len(words), mnemonicWords)
	}
	for _, w := range words {
		if !slices.Contains(wordlist, w) {
			t.Errorf("word %q not in wordlist", w)
		}
	}
}

func TestGenerateMnemonicVaries(t *testing.T) {
	a, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic: %v", err)
	}
	b, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic: %v", err)
	}
	if a == b {
		t.Error("two generated mnemonics are identical")
	}
}
