// Package credentials holds the vendor REST credentials a discovered
// account resolves to. It caches the fields the Session needs to build
// its login frame and nothing else - there is no persistence layer here,
// matching spec.md's "Credential Store" leaf component, which the
// Discovery Client populates once per process lifetime.
package credentials

// Store is an immutable snapshot of one authenticated account: the
// fields the Session's login handshake needs. Callers get a Store back
// from discovery.Client.Authenticate/SubmitTwoFactor and pass it straight
// into session.New - nothing here is written back to disk.
type Store struct {
	UserID      uint32
	Authorize   string
	AccessToken string
}

// New builds a Store from the fields a successful auth call returns.
func New(userID uint32, authorize, accessToken string) Store {
	return Store{UserID: userID, Authorize: authorize, AccessToken: accessToken}
}

// Valid reports whether the Store carries enough information to open a
// session: a non-zero user id and a non-empty authorize token.
func (s Store) Valid() bool {
	return s.UserID != 0 && s.Authorize != ""
}
