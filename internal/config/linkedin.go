package config

// LinkedIn surface URLs. The feed is both the warm-up destination and the
// authenticated-state probe.
const (
	LinkedInBaseURL  = "https://www.linkedin.com"
	LinkedInFeedURL  = "https://www.linkedin.com/feed/"
	LinkedInLoginURL = "https://www.linkedin.com/login"
)

// URL fragments that identify login/challenge walls. A page landing on one
// of these after a feed navigation means the session is not authenticated.
var LinkedInAuthWalls = []string{
	"/login",
	"/uas/login",
	"/authwall",
	"/checkpoint/",
	"/signup",
}

// URL fragments that identify a security block (captcha, restricted
// account). These must halt the account's activity rather than retry.
var LinkedInSecurityWalls = []string{
	"/checkpoint/challenge",
	"/checkpoint/rp/request-password-reset",
	"security-check",
}
