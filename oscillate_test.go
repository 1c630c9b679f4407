package main

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEffectDevice records the calls an oscillation run makes, standing in
// for a kernel-backed session.
type fakeEffectDevice struct {
	ops          []string
	uploads      []fakeUpload
	uploaded     bool
	playing      bool
	failUploadAt int // 1-based upload index that fails, 0 = never
	startErr     error
}

type fakeUpload struct {
	level     int16
	direction int
	length    time.Duration
}

func (f *fakeEffectDevice) UploadEffect(level int16, direction int, length time.Duration) error {
	if f.failUploadAt > 0 && len(f.uploads)+1 == f.failUploadAt {
		f.ops = append(f.ops, "upload-fail")
		return fmt.Errorf("%w: out of slots", ErrEffectCreate)
	}
	f.uploads = append(f.uploads, fakeUpload{level, direction, length})
	f.ops = append(f.ops, "upload")
	f.uploaded = true
	return nil
}

func (f *fakeEffectDevice) EraseEffect() error {
	f.ops = append(f.ops, "erase")
	f.uploaded = false
	f.playing = false
	return nil
}

func (f *fakeEffectDevice) StartEffect() error {
	f.ops = append(f.ops, "start")
	if f.startErr != nil {
		return f.startErr
	}
	f.playing = true
	return nil
}

func (f *fakeEffectDevice) StopEffect() error {
	f.ops = append(f.ops, "stop")
	f.playing = false
	return nil
}

// TestOscillatorAlternatesDirection runs a pattern and checks the push
// direction flips on every replacement, starting with a leftward push.
func TestOscillatorAlternatesDirection(t *testing.T) {
	fake := &fakeEffectDevice{}
	osc := &Oscillator{dev: fake, poll: 2 * time.Millisecond}
	p := PatternParams{SwitchInterval: 10 * time.Millisecond, Strength: 1.0}

	require.NoError(t, osc.Run(p, 100*time.Millisecond))

	require.GreaterOrEqual(t, len(fake.uploads), 2)
	for i, up := range fake.uploads {
		want := 1
		if i%2 == 0 {
			want = -1
		}
		assert.Equal(t, want, up.direction, "upload %d", i)
		assert.Equal(t, int16(32767), up.level, "upload %d", i)
		assert.Equal(t, p.SwitchInterval, up.length, "upload %d", i)
	}
}

// TestOscillatorReplacesBeforeEachUpload checks every upload is preceded by
// an erase and followed by a start, with a single stop after the deadline.
func TestOscillatorReplacesBeforeEachUpload(t *testing.T) {
	fake := &fakeEffectDevice{}
	osc := &Oscillator{dev: fake, poll: 2 * time.Millisecond}
	p := PatternParams{SwitchInterval: 8 * time.Millisecond, Strength: 0.5}

	require.NoError(t, osc.Run(p, 60*time.Millisecond))

	ops := fake.ops
	require.NotEmpty(t, ops)
	assert.Equal(t, "stop", ops[len(ops)-1])
	body := ops[:len(ops)-1]
	require.Zero(t, len(body)%3)
	for i := 0; i < len(body); i += 3 {
		assert.Equal(t, []string{"erase", "upload", "start"}, body[i:i+3])
	}
	assert.True(t, fake.uploaded, "effect should stay in its slot after the run")
	assert.False(t, fake.playing, "playback should be stopped after the run")
}

// TestOscillatorUploadFailureAborts stops the run on the first failed
// effect creation, without playing out the rest of the window.
func TestOscillatorUploadFailureAborts(t *testing.T) {
	fake := &fakeEffectDevice{failUploadAt: 2}
	osc := &Oscillator{dev: fake, poll: 2 * time.Millisecond}
	p := PatternParams{SwitchInterval: 5 * time.Millisecond, Strength: 1.0}

	start := time.Now()
	err := osc.Run(p, 500*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEffectCreate)
	assert.Len(t, fake.uploads, 1)
	assert.Less(t, elapsed, 400*time.Millisecond, "run should abort well before the deadline")
	assert.Equal(t, "upload-fail", fake.ops[len(fake.ops)-1])
}

// TestOscillatorStartFailureContinues keeps the pattern running when the
// device refuses to start an effect.
func TestOscillatorStartFailureContinues(t *testing.T) {
	fake := &fakeEffectDevice{startErr: errors.New("busy")}
	osc := &Oscillator{dev: fake, poll: 2 * time.Millisecond}
	p := PatternParams{SwitchInterval: 8 * time.Millisecond, Strength: 1.0}

	require.NoError(t, osc.Run(p, 60*time.Millisecond))

	assert.GreaterOrEqual(t, len(fake.uploads), 2)
	assert.Equal(t, "stop", fake.ops[len(fake.ops)-1])
}

// TestOscillatorZeroInterval upholds the degenerate zero-interval tuning:
// a zero-strength effect replaced on practically every poll.
func TestOscillatorZeroInterval(t *testing.T) {
	fake := &fakeEffectDevice{}
	osc := &Oscillator{dev: fake, poll: 2 * time.Millisecond}

	require.NoError(t, osc.Run(PatternParams{}, 40*time.Millisecond))

	assert.GreaterOrEqual(t, len(fake.uploads), 2)
	for i, up := range fake.uploads {
		assert.Equal(t, int16(0), up.level, "upload %d", i)
		assert.Equal(t, time.Duration(0), up.length, "upload %d", i)
	}
}

// TestOscillatorZeroTotal skips the loop entirely and still stops cleanly.
func TestOscillatorZeroTotal(t *testing.T) {
	fake := &fakeEffectDevice{}
	osc := NewOscillator(fake)

	require.NoError(t, osc.Run(CategoryObstacle.Params(), 0))

	assert.Empty(t, fake.uploads)
	assert.Equal(t, []string{"stop"}, fake.ops)
}

// TestOscillatorHonorsDeadline bounds the run close to the requested total.
func TestOscillatorHonorsDeadline(t *testing.T) {
	fake := &fakeEffectDevice{}
	osc := &Oscillator{dev: fake, poll: 5 * time.Millisecond}

	start := time.Now()
	require.NoError(t, osc.Run(PatternParams{SwitchInterval: 10 * time.Millisecond, Strength: 1.0}, 80*time.Millisecond))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
	assert.Less(t, elapsed, 250*time.Millisecond)
}

// TestParseCategory maps malformed arguments to the no-feedback category.
func TestParseCategory(t *testing.T) {
	tests := []struct {
		arg  string
		want Category
	}{
		{"", CategoryNone},
		{"0", CategoryNone},
		{"1", CategoryObstacle},
		{"2", CategoryMovement},
		{"02", CategoryMovement},
		{"3", CategoryNone},
		{"-1", CategoryNone},
		{"abc", CategoryNone},
		{"1.5", CategoryNone},
		{"2abc", CategoryNone},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.arg), func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCategory(tt.arg))
		})
	}
}

// TestCategoryParams pins the pattern tuning table.
func TestCategoryParams(t *testing.T) {
	assert.Equal(t, PatternParams{}, CategoryNone.Params())
	assert.Equal(t, PatternParams{SwitchInterval: 25 * time.Millisecond, Strength: 1.0}, CategoryObstacle.Params())
	assert.Equal(t, PatternParams{SwitchInterval: 25 * time.Millisecond, Strength: 1.0}, CategoryMovement.Params())
	assert.Equal(t, PatternParams{}, Category(99).Params())
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "none", CategoryNone.String())
	assert.Equal(t, "obstacle", CategoryObstacle.String())
	assert.Equal(t, "movement", CategoryMovement.String())
}
