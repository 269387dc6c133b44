package policy

// SteamPolicy locks the Steam client.
type SteamPolicy struct{}

// NewSteamPolicy creates a new Steam lock policy.
func NewSteamPolicy() *SteamPolicy {
	return &SteamPolicy{}
}

func (p *SteamPolicy) ID() string {
	return "steam"
}

func (p *SteamPolicy) Name() string {
	return "Steam"
}

// ProcessPatterns returns the Steam client process names on Linux, macOS and Windows.
func (p *SteamPolicy) ProcessPatterns() []string {
	return []string{
		"steam",
		"steamwebhelper",
		"steam_osx",
		"Steam Helper",
	}
}
