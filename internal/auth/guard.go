package auth

// State is a snapshot of the synchronizer.
type State struct {
	User  *User
	Ready bool
}

type Decision int

const (
	// GuardPending: the session is still being resolved, render nothing yet.
	GuardPending Decision = iota
	// GuardRedirectLogin: resolution finished and nobody is logged in.
	GuardRedirectLogin
	GuardAllow
)

func (d Decision) String() string {
	switch d {
	case GuardRedirectLogin:
		return "redirect-login"
	case GuardAllow:
		return "allow"
	default:
		return "pending"
	}
}

// Guard decides what a protected route does. Not ready is never treated as
// logged out.
func Guard(st State) Decision {
	switch {
	case st.User != nil:
		return GuardAllow
	case !st.Ready:
		return GuardPending
	default:
		return GuardRedirectLogin
	}
}
