// Package announce posts challenge activity to a Discord channel.
package announce

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/stake-plus/base-buddies/src/actions/core"
	"github.com/stake-plus/base-buddies/src/bus"
	"github.com/stake-plus/base-buddies/src/challenge"
)

const (
	colorCreated  = 0x0052FF
	colorEdited   = 0xF39C12
	colorFinished = 0x2ECC71
)

// Sender is the part of a Discord session used here.
type Sender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Getter interface {
	Get(ctx context.Context, id uint64) (challenge.View, error)
}

type Subscriber interface {
	Subscribe(h bus.Handler) (cancel func())
}

var _ core.Module = (*Module)(nil)

type Module struct {
	session   *discordgo.Session
	sender    Sender
	channelID string
	getter    Getter
	bus       Subscriber
	publicURL string
	log       *zap.Logger

	events chan bus.Event
	unsub  func()
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewModule opens nothing yet; the Discord connection is made in Start.
func NewModule(token, channelID, publicURL string, getter Getter, sub Subscriber, log *zap.Logger) (*Module, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds
	m := newModule(session, channelID, publicURL, getter, sub, log)
	m.session = session
	return m, nil
}

func newModule(sender Sender, channelID, publicURL string, getter Getter, sub Subscriber, log *zap.Logger) *Module {
	if log == nil {
		log = zap.NewNop()
	}
	return &Module{
		sender:    sender,
		channelID: channelID,
		getter:    getter,
		bus:       sub,
		publicURL: publicURL,
		log:       log.Named("announce"),
		events:    make(chan bus.Event, 64),
	}
}

func (m *Module) Name() string { return "announce" }

func (m *Module) Start(ctx context.Context) error {
	if m.session != nil {
		if err := m.session.Open(); err != nil {
			return fmt.Errorf("failed to open Discord connection: %w", err)
		}
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.unsub = m.bus.Subscribe(m.enqueue)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case ev := <-m.events:
				if err := m.announce(runCtx, ev); err != nil {
					m.log.Warn("announce failed", zap.String("kind", string(ev.Kind)), zap.Uint64("id", ev.ChallengeID), zap.Error(err))
				}
			}
		}
	}()
	return nil
}

func (m *Module) Stop(context.Context) {
	if m.unsub != nil {
		m.unsub()
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	if m.session != nil {
		_ = m.session.Close()
	}
}

// enqueue takes local events only. Remote events were posted by the
// instance that published them.
func (m *Module) enqueue(ev bus.Event) {
	if ev.Remote {
		return
	}
	select {
	case m.events <- ev:
	default:
		m.log.Warn("announce queue full, dropping event", zap.Uint64("id", ev.ChallengeID))
	}
}

func (m *Module) announce(ctx context.Context, ev bus.Event) error {
	if ev.Kind == bus.Deleted {
		_, err := m.sender.ChannelMessageSend(m.channelID, fmt.Sprintf("🗑️ Challenge #%d was deleted by its creator.", ev.ChallengeID))
		return err
	}
	getCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	v, err := m.getter.Get(getCtx, ev.ChallengeID)
	if err != nil {
		return err
	}
	_, err = m.sender.ChannelMessageSendEmbed(m.channelID, Embed(v, ev.Kind, m.publicURL))
	return err
}

// Embed renders a challenge for the channel.
func Embed(v challenge.View, kind bus.Kind, publicURL string) *discordgo.MessageEmbed {
	title := v.Title
	color := colorCreated
	switch kind {
	case bus.Created:
		title = "New challenge: " + v.Title
	case bus.Edited:
		title = "Challenge updated: " + v.Title
		color = colorEdited
	case bus.Completed:
		title = "Challenge completed: " + v.Title
		color = colorFinished
	case bus.Refunded:
		title = "Challenge refunded: " + v.Title
		color = colorFinished
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Reward", Value: v.RewardDisplay, Inline: true},
		{Name: "Participants", Value: fmt.Sprintf("%d/%d", v.CurrentParticipants, v.MaxParticipants), Inline: true},
		{Name: "Time left", Value: v.TimeLeft, Inline: true},
	}
	if v.Category != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Category", Value: v.Category, Inline: true})
	}

	e := &discordgo.MessageEmbed{
		Title:       title,
		Description: v.Description,
		Color:       color,
		Fields:      fields,
		Author:      &discordgo.MessageEmbedAuthor{Name: v.CreatorDisplay},
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Challenge #%d", v.ID)},
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	if publicURL != "" {
		e.URL = fmt.Sprintf("%s/challenge/%d", publicURL, v.ID)
	}
	return e
}
