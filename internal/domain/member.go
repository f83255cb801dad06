package domain

// Flags is the per-connection media state a member broadcasts about itself.
type Flags struct {
	MicMuted        bool `json:"isMuted"`
	VideoOff        bool `json:"isVideoOff"`
	IsScreenSharing bool `json:"isScreenSharing"`
}

// FlagsPatch carries only the flags an event mentions; nil fields are left untouched.
type FlagsPatch struct {
	MicMuted        *bool
	VideoOff        *bool
	IsScreenSharing *bool
}

// Apply merges the patch into f.
func (f *Flags) Apply(p FlagsPatch) {
	if p.MicMuted != nil {
		f.MicMuted = *p.MicMuted
	}
	if p.VideoOff != nil {
		f.VideoOff = *p.VideoOff
	}
	if p.IsScreenSharing != nil {
		f.IsScreenSharing = *p.IsScreenSharing
	}
}

// Member represents user's participation meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	SocketID string
	User     User
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(socketID string, user User) Member {
	return Member{SocketID: socketID, User: user}
}
