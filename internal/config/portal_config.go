package config

import "time"

type PortalConfig interface {
	GetPortalBaseURL() string
	GetHTTPTimeout() time.Duration
}

type Portal struct{}

var _ PortalConfig = Portal{}

func (Portal) GetPortalBaseURL() string {
	return GetEnv("HUTECH_BASE_URL", "https://api.hutech.edu.vn")
}

func (Portal) GetHTTPTimeout() time.Duration {
	return time.Duration(GetEnvInt("HTTP_TIMEOUT", 10, 1)) * time.Second
}
