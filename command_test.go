package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fixedExpiry struct {
	d  time.Duration
	ok bool
}

func (fixedExpiry) CanExecute(counter) bool { return false }
func (fixedExpiry) Execute(counter, Dispatcher[counter, counterEvent]) {}
func (f fixedExpiry) ExpiresAfter() (time.Duration, bool) { return f.d, f.ok }

type plainCommand struct{}

func (plainCommand) CanExecute(counter) bool { return false }
func (plainCommand) Execute(counter, Dispatcher[counter, counterEvent]) {}

func TestExpiryOf(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command[counter, counterEvent]
		want time.Duration
	}{
		{"no expirer uses fallback", plainCommand{}, 7 * time.Second},
		{"unset uses fallback", fixedExpiry{d: time.Second, ok: false}, 7 * time.Second},
		{"explicit", fixedExpiry{d: time.Second, ok: true}, time.Second},
		{"explicit zero", fixedExpiry{d: 0, ok: true}, 0},
		{"negative clamps to zero", fixedExpiry{d: -time.Second, ok: true}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expiryOf(tt.cmd, 7*time.Second))
		})
	}
}

func TestCommandFunc_NilHoldsAlwaysSatisfied(t *testing.T) {
	cmd := NewCommand[counter, counterEvent](nil, nil)
	assert.True(t, cmd.CanExecute(counter{}))
	assert.NotPanics(t, func() { cmd.Execute(counter{}, nil) })
}

func TestCommandFunc_ExpireAfter(t *testing.T) {
	cmd := NewCommand[counter, counterEvent](atLeast(1), nil)

	_, ok := cmd.ExpiresAfter()
	assert.False(t, ok)

	cmd.ExpireAfter(3 * time.Second)
	d, ok := cmd.ExpiresAfter()
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, d)
}

func TestEventName(t *testing.T) {
	assert.Equal(t, "inc", EventName(inc()))
	assert.Equal(t, "int", EventName(42))
	assert.Equal(t, "reactor.counter", EventName(counter{}))
}
