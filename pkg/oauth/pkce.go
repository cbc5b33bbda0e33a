package oauth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// PKCEPolicy controls how code_verifier is checked at code exchange.
type PKCEPolicy int

const (
	// PKCELenient records challenges but never checks them. A supplied
	// verifier is accepted as is and a missing one is tolerated.
	PKCELenient PKCEPolicy = iota

	// PKCEStrict requires a verifier whenever a challenge was recorded
	// and checks it with the recorded method.
	PKCEStrict
)

func (p PKCEPolicy) String() string {
	switch p {
	case PKCELenient:
		return "lenient"
	case PKCEStrict:
		return "strict"
	default:
		return fmt.Sprintf("PKCEPolicy(%d)", int(p))
	}
}

// PolicyFromStrict maps the strictPkce config flag to a policy.
func PolicyFromStrict(strict bool) PKCEPolicy {
	if strict {
		return PKCEStrict
	}
	return PKCELenient
}

// verify checks verifier against the challenge recorded on code.
func (p PKCEPolicy) verify(code *AuthorizationCode, verifier string) error {
	if p != PKCEStrict || code.CodeChallenge == "" {
		return nil
	}
	if verifier == "" {
		return fmt.Errorf("%w: code_verifier is required", ErrPKCEMismatch)
	}

	var computed string
	switch {
	case code.CodeChallengeMethod == "" || strings.EqualFold(code.CodeChallengeMethod, PKCEMethodPlain):
		computed = verifier
	case code.CodeChallengeMethod == PKCEMethodS256:
		computed = oauth2.S256ChallengeFromVerifier(verifier)
	default:
		return fmt.Errorf("%w: unsupported code_challenge_method %q", ErrPKCEMismatch, code.CodeChallengeMethod)
	}

	if subtle.ConstantTimeCompare([]byte(computed), []byte(code.CodeChallenge)) != 1 {
		return ErrPKCEMismatch
	}
	return nil
}
