package api

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	analysisIDPrefix = "anl_"
)

var analysisIDPattern = regexp.MustCompile(`^anl_[a-zA-Z0-9]{24}$`)

// NewAnalysisID generates a new analysis ID with the "anl_" prefix
// followed by 24 cryptographically random alphanumeric characters.
func NewAnalysisID() string {
	return analysisIDPrefix + randomAlphanumeric(idLength)
}

// ValidateAnalysisID checks whether the given string is a valid analysis ID.
func ValidateAnalysisID(id string) bool {
	return analysisIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
