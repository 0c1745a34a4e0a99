package discord

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
)

// CreateInvite creates a permanent, unique invite on the first text channel
// of the guild. Requires a ready gateway session.
func (c *Client) CreateInvite(ctx context.Context) (string, error) {
	if !c.Ready() {
		return "", errors.New("discord gateway is not ready")
	}

	channels, err := c.session.GuildChannels(c.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}

	var target *discordgo.Channel
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildText {
			target = ch
			break
		}
	}
	if target == nil {
		return "", errors.New("guild has no text channel for invites")
	}

	invite, err := c.session.ChannelInviteCreate(target.ID, discordgo.Invite{
		MaxAge:  0,
		MaxUses: 0,
		Unique:  true,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return "https://discord.gg/" + invite.Code, nil
}
