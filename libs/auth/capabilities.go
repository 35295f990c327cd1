package auth

import "context"

type Capability string

const (
	ManageAppointments Capability = "appointments:manage"
	ManageSchedule     Capability = "schedule:manage"
)

var roleCapabilities = map[string][]Capability{
	"admin":     {ManageAppointments, ManageSchedule},
	"therapist": {ManageAppointments, ManageSchedule},
	"assistant": {ManageAppointments},
}

// Principal is the authenticated caller handed to the core.
type Principal struct {
	Subject string
	Role    string
	Email   string
}

func (p Principal) Can(c Capability) bool {
	for _, have := range roleCapabilities[p.Role] {
		if have == c {
			return true
		}
	}
	return false
}

type ctxKey int

const ctxKeyPrincipal ctxKey = iota

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(Principal)
	return p, ok
}
