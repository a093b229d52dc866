package peer

import (
	"encoding/json"
	"os"

	"github.com/pion/webrtc/v4"

	"github.com/s-uryansh/convoo/internal/log"
)

const iceServersEnv = "ICE_SERVERS_JSON"

type iceServerJSON struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// LoadICEConfig reads ICE servers from the ICE_SERVERS_JSON environment
// variable (a JSON array) and falls back to Google STUN when unset or
// unparsable.
func LoadICEConfig() webrtc.Configuration {
	fallback := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
	}

	raw := os.Getenv(iceServersEnv)
	if raw == "" {
		return fallback
	}

	var parsed []iceServerJSON
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		log.L().Warn().Err(err).Msg("could not parse ICE_SERVERS_JSON, falling back to Google STUN")
		return fallback
	}

	servers := make([]webrtc.ICEServer, 0, len(parsed))
	for _, s := range parsed {
		server := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			server.Username = s.Username
			server.Credential = s.Credential
		}
		servers = append(servers, server)
	}
	if len(servers) == 0 {
		return fallback
	}

	return webrtc.Configuration{ICEServers: servers}
}
