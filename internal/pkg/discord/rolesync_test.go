package discord

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGuildAPI struct {
	member    *discordgo.Member
	memberErr error

	adds    int
	removes int
	addErr  error
}

func (f *fakeGuildAPI) GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
	return f.member, f.memberErr
}

func (f *fakeGuildAPI) GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	f.adds++
	return f.addErr
}

func (f *fakeGuildAPI) GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	f.removes++
	return nil
}

func newTestSyncer(api *fakeGuildAPI, ready bool) *Syncer {
	return &Syncer{
		api:     api,
		ready:   func() bool { return ready },
		guildID: "guild-1",
		roleID:  "role-pro",
		sleep:   func(time.Duration) {},
	}
}

func TestEnsureRoleConverges(t *testing.T) {
	tests := []struct {
		name        string
		roles       []string
		shouldHold  bool
		wantAdds    int
		wantRemoves int
	}{
		{name: "grant missing role", roles: []string{"role-other"}, shouldHold: true, wantAdds: 1},
		{name: "revoke held role", roles: []string{"role-pro"}, shouldHold: false, wantRemoves: 1},
		{name: "already holds", roles: []string{"role-pro"}, shouldHold: true},
		{name: "already lacks", roles: []string{"role-other"}, shouldHold: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeGuildAPI{member: &discordgo.Member{Roles: tt.roles}}
			s := newTestSyncer(api, true)

			err := s.EnsureRole(context.Background(), "user-1", tt.shouldHold, "test")
			require.NoError(t, err)
			assert.Equal(t, tt.wantAdds, api.adds)
			assert.Equal(t, tt.wantRemoves, api.removes)
		})
	}
}

func TestEnsureRoleUnknownMemberIsNotAnError(t *testing.T) {
	api := &fakeGuildAPI{
		memberErr: &discordgo.RESTError{
			Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMember},
		},
	}
	s := newTestSyncer(api, true)

	err := s.EnsureRole(context.Background(), "user-1", true, "test")
	require.NoError(t, err)
	assert.Zero(t, api.adds)
	assert.Zero(t, api.removes)
}

func TestEnsureRolePropagatesLookupFailure(t *testing.T) {
	api := &fakeGuildAPI{memberErr: errors.New("rate limited")}
	s := newTestSyncer(api, true)

	err := s.EnsureRole(context.Background(), "user-1", true, "test")
	require.Error(t, err)
	assert.Zero(t, api.adds)
}

func TestEnsureRoleWaitsOnceWhenNotReady(t *testing.T) {
	api := &fakeGuildAPI{member: &discordgo.Member{}}
	slept := 0
	s := newTestSyncer(api, false)
	s.sleep = func(time.Duration) { slept++ }

	err := s.EnsureRole(context.Background(), "user-1", true, "test")
	require.NoError(t, err)
	assert.Equal(t, 1, slept)
	assert.Equal(t, 1, api.adds)
}
