package models

type AuthMethod string

const (
	AuthMethodCertificate AuthMethod = "CERTIFICATE"
	AuthMethodPassword    AuthMethod = "PASSWORD"
	AuthMethodNone        AuthMethod = "NONE"
)

// AuthorizedPrincipal is the outcome of the authentication gateway: the
// authenticated name and the method that produced it.
type AuthorizedPrincipal struct {
	Name   string
	Method AuthMethod
}

func (p AuthorizedPrincipal) Authenticated() bool {
	return p.Method != AuthMethodNone && p.Method != ""
}
