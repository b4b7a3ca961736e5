package authz

import "context"

// Request describes a privileged operation awaiting authorization.
type Request struct {
	RequesterId string `json:"requester_id"`
	Operation   string `json:"operation"`
	Resource    string `json:"resource"`
}

// Decision is the verdict for a request. Failures of a remote permission
// backend surface as a denial with the failure as reason.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// IAuthorizer gates privileged operations such as executing scaling actions.
type IAuthorizer interface {
	CheckPermission(ctx context.Context, request Request) Decision
}

// AllowAllAuthorizer grants every request.
type AllowAllAuthorizer struct{}

func NewAllowAllAuthorizer() *AllowAllAuthorizer {
	return &AllowAllAuthorizer{}
}

func (authorizer *AllowAllAuthorizer) CheckPermission(ctx context.Context, request Request) Decision {
	return Decision{Allowed: true}
}
