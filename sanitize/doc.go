// Package sanitize cleans untrusted input before it reaches the gateway and
// redacts sensitive substrings before text leaves it.
//
// Rejection and redaction are independent: SanitizeString and SanitizeValue
// refuse input that matches an injection pattern, while Redact and Scrub
// never fail and only replace what they recognize.
//
//	s := sanitize.New(sanitize.Config{})
//	clean, err := s.SanitizeString(userInput, "query")
//	if err != nil {
//	    var verr *sanitize.ValidationError
//	    if errors.As(err, &verr) { ... }
//	}
//
//	safe := sanitize.Redact("api_key: sk-1234") // "[API_KEY]"
package sanitize
