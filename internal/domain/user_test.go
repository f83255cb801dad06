package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	tests := []struct {
		name     string
		id       UserID
		username string
		wantErr  error
	}{
		{name: "valid", id: "u1", username: "alice"},
		{name: "empty id", id: "", username: "alice", wantErr: ErrUserIDEmpty},
		{name: "long id", id: UserID(strings.Repeat("x", MaxUserIDLen+1)), username: "alice", wantErr: ErrUserIDTooLong},
		{name: "empty name", id: "u1", username: "", wantErr: ErrUsernameEmpty},
		{name: "long name", id: "u1", username: strings.Repeat("n", MaxUsernameLen+1), wantErr: ErrUsernameTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := NewUser(tt.id, tt.username, "pic.png")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, u.ID)
			assert.Equal(t, tt.username, u.Username)
			assert.Equal(t, "pic.png", u.Picture)
		})
	}
}

func TestUser_SetPictureIgnoresOversized(t *testing.T) {
	u := &User{ID: "u1", Username: "alice", Picture: "old.png"}
	u.SetPicture(strings.Repeat("p", MaxPictureLen+1))
	assert.Equal(t, "old.png", u.Picture)
}

func TestFlags_ApplyLeavesUnmentionedFields(t *testing.T) {
	yes := true
	no := false
	f := Flags{VideoOff: true}

	f.Apply(FlagsPatch{MicMuted: &yes})
	assert.Equal(t, Flags{MicMuted: true, VideoOff: true}, f)

	f.Apply(FlagsPatch{VideoOff: &no, IsScreenSharing: &yes})
	assert.Equal(t, Flags{MicMuted: true, IsScreenSharing: true}, f)
}

func TestSettings_MergeIsShallow(t *testing.T) {
	s := Settings{"theme": "dark", "layout": map[string]any{"grid": true}}
	s.Merge(Settings{"lang": "en", "layout": "speaker"})

	assert.Equal(t, Settings{"theme": "dark", "lang": "en", "layout": "speaker"}, s)

	c := s.Clone()
	c["theme"] = "light"
	assert.Equal(t, "dark", s["theme"])
}
