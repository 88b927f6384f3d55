package api

// ServerInfo is the capability probe returned by GET /info.
type ServerInfo struct {
	Name          string                `json:"name"`
	Version       int                   `json:"version"`
	VersionString string                `json:"version_string"`
	Author        string                `json:"author"`
	DataChannels  bool                  `json:"data_channels"`
	IPv6          bool                  `json:"ipv6"`
	ICETCP        bool                  `json:"ice-tcp"`
	FullTrickle   bool                  `json:"full-trickle"`
	Transports    map[string]PluginInfo `json:"transports"`
	Plugins       map[string]PluginInfo `json:"plugins"`
}

// PluginInfo describes one plugin or transport module on the gateway.
type PluginInfo struct {
	Name          string `json:"name"`
	Author        string `json:"author"`
	Description   string `json:"description"`
	Version       int    `json:"version"`
	VersionString string `json:"version_string"`
}
