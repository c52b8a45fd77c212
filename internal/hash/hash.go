package hash

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordLen is the bcrypt input limit; longer passwords are rejected rather than truncated.
const MaxPasswordLen = 72

var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

var (
	dummyMu     sync.Mutex
	dummyHashes = map[int][]byte{}
)

// NormalizeCost maps 0 and out-of-range costs to bcrypt.DefaultCost.
func NormalizeCost(cost int) int {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return cost
}

func HashPassword(password string) (string, error) {
	return HashPasswordCost(password, bcrypt.DefaultCost)
}

func HashPasswordCost(password string, cost int) (string, error) {
	if len(password) > MaxPasswordLen {
		return "", ErrPasswordTooLong
	}
	hashbytes, err := bcrypt.GenerateFromPassword([]byte(password), NormalizeCost(cost))
	if err != nil {
		return "", err
	}
	return string(hashbytes), nil
}

// CheckPassword reports false for passwords over MaxPasswordLen; bcrypt itself
// would compare only the first 72 bytes.
func CheckPassword(hash, password string) bool {
	if len(password) > MaxPasswordLen {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CheckDummy burns the same bcrypt work as CheckPassword against a hash of the
// given cost, for a login whose email matched no user.
func CheckDummy(password string, cost int) {
	_ = bcrypt.CompareHashAndPassword(dummyHash(cost), []byte(password))
}

func dummyHash(cost int) []byte {
	cost = NormalizeCost(cost)

	dummyMu.Lock()
	defer dummyMu.Unlock()
	if h, ok := dummyHashes[cost]; ok {
		return h
	}
	h, _ := bcrypt.GenerateFromPassword([]byte("orgsite-dummy-password"), cost)
	dummyHashes[cost] = h
	return h
}
