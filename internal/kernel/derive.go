package kernel

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// DIDPrefix is the fixed prefix of every derived identity id.
const DIDPrefix = "did:kernel:"

// mnemonicWords is the number of words in a generated phrase.
const mnemonicWords = 24

// wordlist is the fixed mnemonic vocabulary. It is deliberately a short
// list sampled with repetition, not the BIP39 2048-word list: phrases
// carry far less entropy than their length suggests. This store computes
// content hashes, not signatures, so the weaker seed is tolerated.
var wordlist = []string{
	"abandon", "ability", "able", "about", "above", "absent", "absorb", "abstract",
	"absurd", "abuse", "access", "accident", "account", "accuse", "achieve", "acid",
	"acoustic", "acquire", "across", "act", "action", "actor", "actual", "adapt",
	"add", "addict", "address", "adjust", "admit", "adult", "advance", "advice",
	"aerobic", "affair", "afford", "afraid", "again", "age", "agent", "agree",
	"ahead", "aim", "air", "airport", "aisle", "alarm", "album", "alcohol",
	"alert", "alien", "all", "alley", "allow", "almost", "alone", "alpha",
	"already", "also", "alter", "always", "amateur", "amazing", "among", "amount",
	"amused", "analyst", "anchor", "ancient", "anger", "angle", "angry", "animal",
	"ankle", "announce", "annual", "another", "answer", "antenna", "antique", "anxiety",
	"any", "apart", "apology", "appear", "apple", "approve", "april", "arch",
	"arctic", "area", "arena", "argue", "arm", "armed", "armor", "army",
	"around", "arrange", "arrest", "arrive", "arrow", "art", "artefact", "artist",
	"artwork", "ask", "aspect", "assault", "asset", "assist", "assume", "asthma",
	"athlete", "atom", "attack", "attend", "attitude", "attract", "auction", "audit",
	"august", "aunt", "author", "auto", "autumn", "average", "avocado", "avoid",
}

// Keys is the derived material for one identity. PublicKey and PrivateKey
// are hash outputs, not asymmetric key pairs.
type Keys struct {
	DID        string
	PublicKey  string
	PrivateKey string
	Seed       string
}

// GenerateMnemonic draws a 24-word phrase from the wordlist using a
// cryptographically strong random source.
func GenerateMnemonic() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}

	words := make([]string, mnemonicWords)
	for i := 0; i < mnemonicWords; i++ {
		words[i] = wordlist[int(buf[i])%len(wordlist)]
	}
	return strings.Join(words, " "), nil
}

// DeriveFromMnemonic deterministically derives identity material from a
// phrase. The same phrase always yields the same keys.
func DeriveFromMnemonic(mnemonic string) Keys {
	seedSum := sha256.Sum256([]byte(mnemonic))
	seed := hex.EncodeToString(seedSum[:])

	pubSum := sha256.Sum256([]byte(seed + "public"))
	privSum := sha256.Sum256([]byte(seed + "private"))

	return Keys{
		DID:        DIDPrefix + seed[:32],
		PublicKey:  hex.EncodeToString(pubSum[:]),
		PrivateKey: hex.EncodeToString(privSum[:]),
		Seed:       seed,
	}
}
