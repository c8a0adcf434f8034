// Package log provides slog loggers that never print credentials.
//
// linkwalk can be configured with HTTP Basic credentials, cookies and custom
// headers per site. SecureHandler masks those values wherever they appear
// in log attributes:
//   - keys such as Authorization, Cookie and password
//   - Basic and Bearer authorization values under any key
//   - the password part of URLs like https://user:pw@example.com
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
package log
