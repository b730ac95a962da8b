package platforms

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// NopLogger silently discards all messages.
type NopLogger struct{}

func (NopLogger) Infof(string, ...interface{})  {}
func (NopLogger) Warnf(string, ...interface{})  {}
func (NopLogger) Errorf(string, ...interface{}) {}
func (NopLogger) Debugf(string, ...interface{}) {}

// LoggerOrNop returns l, or a NopLogger when l is nil.
func LoggerOrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}

// AuthConfig carries optional provider credentials.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	BearerToken  string
}

// Endpoints groups the base URLs of a provider. APIURL is queried, TokenURL
// is used for credential exchange and SiteURL builds user-facing links.
type Endpoints struct {
	APIURL   string
	TokenURL string
	SiteURL  string
}
