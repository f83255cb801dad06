package rtc

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/meetrelay/internal/config"
	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const (
	KindOffer     = "offer"
	KindAnswer    = "answer"
	KindPranswer  = "pranswer"
	KindRollback  = "rollback"
	KindCandidate = "candidate"
	KindOther     = "other"
)

// DefaultICEServers is what browsers get when nothing is configured.
func DefaultICEServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{
		{
			URLs: []string{"stun:stun.l.google.com:19302"},
		},
	}
}

// ICEServers converts configured servers into the shape a browser RTCPeerConnection expects.
// Every URL must parse as a stun/turn URI.
func ICEServers(servers []config.ICEServer) ([]webrtc.ICEServer, error) {
	if len(servers) == 0 {
		return DefaultICEServers(), nil
	}
	out := make([]webrtc.ICEServer, 0, len(servers))
	for i, s := range servers {
		if len(s.URLs) == 0 {
			return nil, fmt.Errorf("ice server %d: no urls", i)
		}
		for _, raw := range s.URLs {
			if _, err := stun.ParseURI(raw); err != nil {
				return nil, fmt.Errorf("ice server %d: %q: %w", i, raw, err)
			}
		}
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
			srv.CredentialType = webrtc.ICECredentialTypePassword
		}
		out = append(out, srv)
	}
	log.Info().Str("module", "rtc").Int("count", len(out)).Msg("ice servers configured")
	return out, nil
}

// ClassifySignal names the kind of an opaque peer-connection signal without altering it.
// Session descriptions and ICE candidates are decoded with the pion types; any other JSON
// object (renegotiation requests and the like) passes as KindOther. Non-objects are malformed.
func ClassifySignal(raw json.RawMessage) (string, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return "", false
	}

	if cand, ok := fields["candidate"]; ok {
		var ci webrtc.ICECandidateInit
		if err := json.Unmarshal(cand, &ci); err != nil {
			// flat form: {"candidate":"candidate:...","sdpMid":"0"}
			if err := json.Unmarshal(raw, &ci); err != nil {
				return "", false
			}
		}
		return KindCandidate, true
	}

	if _, ok := fields["sdp"]; ok {
		var sd webrtc.SessionDescription
		if err := json.Unmarshal(raw, &sd); err != nil {
			return "", false
		}
		switch sd.Type {
		case webrtc.SDPTypeOffer:
			return KindOffer, sd.SDP != ""
		case webrtc.SDPTypeAnswer:
			return KindAnswer, sd.SDP != ""
		case webrtc.SDPTypePranswer:
			return KindPranswer, sd.SDP != ""
		case webrtc.SDPTypeRollback:
			return KindRollback, true
		default:
			return "", false
		}
	}

	return KindOther, true
}
