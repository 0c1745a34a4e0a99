package discord

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
)

// readyGracePeriod is how long EnsureRole waits once for a not-yet-ready
// gateway before attempting the sync anyway.
const readyGracePeriod = 2 * time.Second

type guildAPI interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

// Syncer converges a member's role to the desired entitlement state with at
// most one mutating API call per invocation.
type Syncer struct {
	api     guildAPI
	ready   func() bool
	guildID string
	roleID  string
	sleep   func(time.Duration)
}

// NewSyncer builds a role syncer bound to the client's guild and role.
func NewSyncer(client *Client) *Syncer {
	return &Syncer{
		api:     client.Session(),
		ready:   client.Ready,
		guildID: client.GuildID(),
		roleID:  client.RoleID(),
		sleep:   time.Sleep,
	}
}

// EnsureRole makes the member's role membership match shouldHold. A member
// who already left the guild is not an error. The reason only feeds logs.
func (s *Syncer) EnsureRole(ctx context.Context, discordUserID string, shouldHold bool, reason string) error {
	if !s.ready() {
		log.Printf("[discord] gateway not ready, waiting %s before sync user=%s", readyGracePeriod, discordUserID)
		s.sleep(readyGracePeriod)
	}

	member, err := s.api.GuildMember(s.guildID, discordUserID, discordgo.WithContext(ctx))
	if err != nil {
		if isUnknownMember(err) {
			log.Printf("[discord] user=%s not in guild, skip sync reason=%q", discordUserID, reason)
			return nil
		}
		return err
	}

	holds := false
	for _, roleID := range member.Roles {
		if roleID == s.roleID {
			holds = true
			break
		}
	}

	switch {
	case shouldHold && !holds:
		if err := s.api.GuildMemberRoleAdd(s.guildID, discordUserID, s.roleID, discordgo.WithContext(ctx)); err != nil {
			return err
		}
		log.Printf("[discord] role added user=%s reason=%q", discordUserID, reason)
	case !shouldHold && holds:
		if err := s.api.GuildMemberRoleRemove(s.guildID, discordUserID, s.roleID, discordgo.WithContext(ctx)); err != nil {
			return err
		}
		log.Printf("[discord] role removed user=%s reason=%q", discordUserID, reason)
	default:
		log.Printf("[discord] role unchanged user=%s holds=%t reason=%q", discordUserID, holds, reason)
	}
	return nil
}

func isUnknownMember(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		return restErr.Message.Code == discordgo.ErrCodeUnknownMember ||
			restErr.Message.Code == discordgo.ErrCodeUnknownUser
	}
	return false
}
