package config

// SalesforceConfig carries the connected-app OAuth parameters.
type SalesforceConfig interface {
	GetLoginURL() string
	GetClientID() string
	GetClientSecret() string
	GetRedirectURI() string
}

type Salesforce struct{}

var _ SalesforceConfig = Salesforce{}

func (Salesforce) GetLoginURL() string {
	return GetEnv("SF_LOGIN_URL", "https://login.salesforce.com")
}

func (Salesforce) GetClientID() string {
	return GetEnv("SF_CLIENT_ID", "")
}

func (Salesforce) GetClientSecret() string {
	return GetEnv("SF_CLIENT_SECRET", "")
}

// GetRedirectURI defaults to the callback route under BASE_URL.
func (Salesforce) GetRedirectURI() string {
	uri := GetEnv("SF_REDIRECT_URI", "")
	if uri != "" {
		return uri
	}
	return EnvVars{}.GetBaseURL() + "/auth/callback"
}
