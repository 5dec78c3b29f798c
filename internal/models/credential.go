package models

// CredentialKind distinguishes how the remote API is authenticated
type CredentialKind int

const (
	TokenCredential CredentialKind = iota
	EmailPasswordCredential
)

// Credential authenticates against the remote API. Only token credentials can access reports.
type Credential struct {
	Kind     CredentialKind
	APIToken string
	Email    string
	Password string
}

func NewTokenCredential(token string) Credential {
	return Credential{Kind: TokenCredential, APIToken: token}
}

func NewEmailPasswordCredential(email, password string) Credential {
	return Credential{Kind: EmailPasswordCredential, Email: email, Password: password}
}

func (c Credential) IsToken() bool {
	return c.Kind == TokenCredential && c.APIToken != ""
}

// BasicAuth returns the username/password pair used for HTTP basic authentication
func (c Credential) BasicAuth() (string, string) {
	if c.Kind == TokenCredential {
		return c.APIToken, "api_token"
	}
	return c.Email, c.Password
}
