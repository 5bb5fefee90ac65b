package internal

// Account holds the stored credentials for a connected calendar
// account. The planner runs in single-user mode: at most one account
// per platform.
type Account struct {
	Platform string
	Email    string
	// Auth is the JSON-serialized OAuth token for the platform.
	Auth string
}

func (a Account) ID() string {
	return a.Platform + "/" + a.Email
}
