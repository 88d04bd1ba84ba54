package config

import "time"

// PortalConfig carries browser automation settings: where the portals
// live and how long sessions and operations may run.
type PortalConfig interface {
	GetCleverLoginURL() string
	GetCleverAppsURL() string
	GetMcGrawHillAssignmentsURL() string
	GetEdpuzzleAssignmentsURL() string
	GetHeadless() bool
	GetSessionTTL() time.Duration
	GetLoginTimeout() time.Duration
	GetLoginInterval() time.Duration
	GetOperationTimeout() time.Duration
}

type Portal struct{}

var _ PortalConfig = Portal{}

func (Portal) GetCleverLoginURL() string {
	return GetEnv("CLEVER_LOGIN_URL", "https://clever.com/login")
}

func (Portal) GetCleverAppsURL() string {
	return GetEnv("CLEVER_APPS_URL", "https://clever.com/in/portal")
}

func (Portal) GetMcGrawHillAssignmentsURL() string {
	return GetEnv("MCGRAW_ASSIGNMENTS_URL", "")
}

func (Portal) GetEdpuzzleAssignmentsURL() string {
	return GetEnv("EDPUZZLE_ASSIGNMENTS_URL", "")
}

func (Portal) GetHeadless() bool {
	return GetEnv("BROWSER_HEADLESS", "true") != "false"
}

func (Portal) GetSessionTTL() time.Duration {
	return GetDuration("SESSION_TTL", 45*time.Minute)
}

func (Portal) GetLoginTimeout() time.Duration {
	return GetDuration("LOGIN_TIMEOUT", 60*time.Second)
}

func (Portal) GetLoginInterval() time.Duration {
	return GetDuration("LOGIN_INTERVAL", 2*time.Second)
}

func (Portal) GetOperationTimeout() time.Duration {
	return GetDuration("OPERATION_TIMEOUT", 90*time.Second)
}
