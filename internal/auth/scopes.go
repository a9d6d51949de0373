package auth

// Known OAuth scopes accepted by the league API.
const (
	ScopeLeaguesRead  = "leagues:read"
	ScopeLeaguesWrite = "leagues:write"
	ScopeStepsRead    = "steps:read"
)

// DefaultScopes are granted to tokens minted for ordinary players.
var DefaultScopes = []string{ScopeLeaguesRead, ScopeLeaguesWrite, ScopeStepsRead}
