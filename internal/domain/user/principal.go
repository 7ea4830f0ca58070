package user

// Principal is the authenticated caller resolved from a bearer token.
type Principal struct {
	PlayerID int64
	Email    string
}
