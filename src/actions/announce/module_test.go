package announce

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/stake-plus/base-buddies/src/bus"
	"github.com/stake-plus/base-buddies/src/challenge"
	"github.com/stake-plus/base-buddies/src/store/memory"
)

type fakeSender struct {
	mu     sync.Mutex
	texts  []string
	embeds []*discordgo.MessageEmbed
}

func (f *fakeSender) ChannelMessageSend(_ string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, content)
	return &discordgo.Message{}, nil
}

func (f *fakeSender) ChannelMessageSendEmbed(_ string, e *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embeds = append(f.embeds, e)
	return &discordgo.Message{}, nil
}

func (f *fakeSender) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts), len(f.embeds)
}

type fakeGetter struct{}

func (fakeGetter) Get(_ context.Context, id uint64) (challenge.View, error) {
	rec := challenge.Record{ID: id, Title: "Swim", Description: "1km", Reward: big.NewInt(1e15), Deadline: 2, MaxParticipants: 3}
	return challenge.BuildView(rec, &challenge.Metadata{Category: "Lifestyle"}, 1), nil
}

func TestAnnounce(t *testing.T) {
	defer goleak.VerifyNone(t)
	sender := &fakeSender{}
	b := bus.New(memory.New().Client(), nil)
	m := newModule(sender, "chan", "https://buddies.example", fakeGetter{}, b, nil)

	require.NoError(t, m.Start(context.Background()))
	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, bus.Created, 3))
	require.NoError(t, b.Publish(ctx, bus.Deleted, 4))

	assert.Eventually(t, func() bool {
		texts, embeds := sender.counts()
		return texts == 1 && embeds == 1
	}, time.Second, time.Millisecond)
	m.Stop(ctx)

	assert.Contains(t, sender.texts[0], "#4")
	e := sender.embeds[0]
	assert.Equal(t, "New challenge: Swim", e.Title)
	assert.Equal(t, "https://buddies.example/challenge/3", e.URL)
	assert.Equal(t, "0.0010 ETH", e.Fields[0].Value)
}

func TestRemoteEventsNotAnnounced(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backend := memory.New()
	local := bus.New(backend.Client(), nil)
	other := bus.New(backend.Client(), nil)
	require.NoError(t, local.Start(ctx))

	sender := &fakeSender{}
	m := newModule(sender, "chan", "", fakeGetter{}, local, nil)
	require.NoError(t, m.Start(ctx))

	var mu sync.Mutex
	var seen []bus.Event
	local.Subscribe(func(ev bus.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev)
	})
	require.NoError(t, other.Publish(ctx, bus.Created, 8))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && seen[0].Remote
	}, time.Second, time.Millisecond)

	m.Stop(ctx)
	cancel()
	texts, embeds := sender.counts()
	assert.Zero(t, texts)
	assert.Zero(t, embeds)
}

func TestEmbedColors(t *testing.T) {
	v := challenge.View{Record: challenge.Record{ID: 1, Title: "x"}}
	assert.Equal(t, colorEdited, Embed(v, bus.Edited, "").Color)
	assert.Equal(t, colorFinished, Embed(v, bus.Refunded, "").Color)
	assert.Empty(t, Embed(v, bus.Created, "").URL)
}
