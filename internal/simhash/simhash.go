// Package simhash computes 64-bit locality-sensitive fingerprints of
// article text. Near-identical texts produce signatures within a few bits
// of each other; unrelated texts land far apart.
package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
	"unicode"
)

// ShingleSize is the number of tokens per overlapping shingle.
const ShingleSize = 3

// Fingerprint computes the simhash signature of text: tokenize, build
// overlapping shingles, hash each shingle with FNV-1a, and set each output
// bit by the frequency-weighted majority across all shingle hashes.
// Identical input always yields an identical signature.
func Fingerprint(text string) uint64 {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return 0
	}

	shingles := make(map[string]int)
	if len(tokens) < ShingleSize {
		shingles[strings.Join(tokens, " ")] = 1
	} else {
		for i := 0; i+ShingleSize <= len(tokens); i++ {
			shingles[strings.Join(tokens[i:i+ShingleSize], " ")]++
		}
	}

	var weights [64]int
	for shingle, count := range shingles {
		h := hashShingle(shingle)
		for bit := 0; bit < 64; bit++ {
			if h&(1<<uint(bit)) != 0 {
				weights[bit] += count
			} else {
				weights[bit] -= count
			}
		}
	}

	var sig uint64
	for bit := 0; bit < 64; bit++ {
		if weights[bit] > 0 {
			sig |= 1 << uint(bit)
		}
	}
	return sig
}

// HammingDistance counts the differing bits between two signatures.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Tokenize lowercases text and splits it on anything that is not a letter
// or digit, so punctuation changes never affect the fingerprint.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func hashShingle(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
