package secrets

import "regexp"

// Pattern defines a secret detection pattern.
type Pattern struct {
	Name  string
	Regex *regexp.Regexp
}

// DefaultPatterns returns the built-in secret detection patterns.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Name: "AWS Access Key", Regex: regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
		{Name: "GCP Service Account Key", Regex: regexp.MustCompile(`"private_key":\s*"-----BEGIN`)},
		{Name: "GitHub Token", Regex: regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`)},
		{Name: "Slack Token", Regex: regexp.MustCompile(`xox[baprs]-[A-Za-z0-9-]{10,}`)},
		{Name: "Stripe Secret Key", Regex: regexp.MustCompile(`sk_live_[A-Za-z0-9]{24,}`)},
		{Name: "Private Key", Regex: regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`)},
		// URLs with embedded credentials, including database DSNs
		{Name: "Credentialed URL", Regex: regexp.MustCompile(`[a-z][a-z0-9+.-]*://[^\s:/@]+:[^\s/@]+@[^\s]+`)},
		{Name: "JWT Token", Regex: regexp.MustCompile(`eyJ[A-Za-z0-9\-_]+\.eyJ[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+`)},
	}
}
