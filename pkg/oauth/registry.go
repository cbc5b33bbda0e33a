package oauth

import "github.com/getmockd/mockidp/pkg/directory"

// UserRegistry resolves users and verifies their passwords.
type UserRegistry interface {
	FindByPrincipalName(name string) (*directory.User, bool)
	FindByID(id string) (*directory.User, bool)
	VerifyCredentials(name, password string) (*directory.User, bool)
}

// ApplicationRegistry resolves client applications.
type ApplicationRegistry interface {
	FindByID(clientID string) (*directory.Application, bool)
	VerifySecret(clientID, secret string) bool
	IsRedirectURIRegistered(clientID, uri string) bool
}

// Recorder receives core events for metrics. All methods must be safe for
// concurrent use.
type Recorder interface {
	GrantCompleted(grantType, outcome string)
	TokenIssued(kind string)
	StoreSizes(codes, refreshTokens int)
}

// NopRecorder discards every event.
type NopRecorder struct{}

func (NopRecorder) GrantCompleted(string, string) {}
func (NopRecorder) TokenIssued(string)            {}
func (NopRecorder) StoreSizes(int, int)           {}

func orNopRecorder(r Recorder) Recorder {
	if r == nil {
		return NopRecorder{}
	}
	return r
}
