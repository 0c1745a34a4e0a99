package discord

import (
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Client owns the gateway session to the community server. Role mutations
// are only attempted once the gateway reported ready.
type Client struct {
	session *discordgo.Session
	guildID string
	roleID  string

	mu    sync.RWMutex
	ready bool
}

// NewClient builds a gateway client for the given guild and paid role.
func NewClient(botToken, guildID, roleID string) (*Client, error) {
	token := strings.TrimSpace(botToken)
	if token == "" {
		return nil, errors.New("discord bot token is not configured")
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	c := &Client{
		session: session,
		guildID: guildID,
		roleID:  roleID,
	}

	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		c.setReady(true)
		log.Printf("[discord] gateway ready as %s#%s", r.User.Username, r.User.Discriminator)
	})
	session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		c.setReady(false)
		log.Print("[discord] gateway disconnected")
	})

	return c, nil
}

// Start opens the gateway connection. Ready state follows asynchronously.
func (c *Client) Start() error {
	return c.session.Open()
}

// Stop closes the gateway connection.
func (c *Client) Stop() error {
	c.setReady(false)
	return c.session.Close()
}

// Ready reports whether the gateway session is connected and usable.
func (c *Client) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Session exposes the underlying discordgo session.
func (c *Client) Session() *discordgo.Session {
	return c.session
}

// GuildID returns the configured guild.
func (c *Client) GuildID() string {
	return c.guildID
}

// RoleID returns the configured paid-member role.
func (c *Client) RoleID() string {
	return c.roleID
}

func (c *Client) setReady(ready bool) {
	c.mu.Lock()
	c.ready = ready
	c.mu.Unlock()
}
