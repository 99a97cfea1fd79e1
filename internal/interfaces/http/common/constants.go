package common

const (
	// DefaultMaxFormBody limits intake request bodies when no limit is configured.
	DefaultMaxFormBody = 1 << 20

	// Edge headers set by Cloudflare in front of the service.
	HeaderConnectingIP = "cf-connecting-ip"
	HeaderIPCountry    = "cf-ipcountry"
	HeaderThreatScore  = "x-threat-score"

	corsAllowOrigin  = "*"
	corsAllowMethods = "POST, OPTIONS"
	corsAllowHeaders = "Content-Type"
)
