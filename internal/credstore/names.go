package credstore

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var adjectives = []string{
	"happy", "sad", "brave", "shy", "calm", "wild", "swift", "gentle",
	"fierce", "clever", "wise", "silly", "proud", "humble", "bold", "quiet",
	"bright", "dark", "cool", "warm", "smooth", "rough", "sweet", "spicy",
}

// "falcon" appears twice; existing installs were generated from this list.
var animals = []string{
	"gorilla", "panda", "tiger", "lion", "eagle", "hawk", "wolf", "bear",
	"fox", "deer", "owl", "raven", "dolphin", "whale", "shark", "otter",
	"koala", "lemur", "lynx", "badger", "falcon", "moose", "bison", "cobra",
	"penguin", "seal", "walrus", "turtle", "gecko", "iguana", "falcon", "crane",
}

const (
	minSuffix = 10
	maxSuffix = 999
)

// GenerateUsername returns a name like "swiftpanda217".
func GenerateUsername() (string, error) {
	a, err := randIndex(len(adjectives))
	if err != nil {
		return "", err
	}
	n, err := randIndex(len(animals))
	if err != nil {
		return "", err
	}
	d, err := randIndex(maxSuffix - minSuffix + 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s%d", adjectives[a], animals[n], minSuffix+d), nil
}

func randIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
