package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stub struct {
	name  string
	fail  bool
	trail *[]string
}

func (s stub) Name() string { return s.name }

func (s stub) Start(context.Context) error {
	if s.fail {
		return errors.New("nope")
	}
	*s.trail = append(*s.trail, "start "+s.name)
	return nil
}

func (s stub) Stop(context.Context) { *s.trail = append(*s.trail, "stop "+s.name) }

func TestStartStopOrder(t *testing.T) {
	var trail []string
	m := NewManager(nil, stub{name: "a", trail: &trail}, nil, stub{name: "b", trail: &trail})
	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()))
	assert.Error(t, m.Add(stub{name: "late", trail: &trail}))

	m.Stop(context.Background())
	m.Stop(context.Background())
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, trail)
	assert.Equal(t, []string{"a", "b"}, m.Names())
}

func TestStartFailureRollsBack(t *testing.T) {
	var trail []string
	m := NewManager(nil, stub{name: "a", trail: &trail}, stub{name: "b", trail: &trail, fail: true})
	err := m.Start(context.Background())
	require.ErrorContains(t, err, "module b failed")
	assert.Equal(t, []string{"start a", "stop a"}, trail)
}
