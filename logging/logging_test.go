package logging

import (
	"bytes"
	"testing"

	"go.viam.com/test"
)

func TestNewLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "warn", Output: &buf})
	test.That(t, err, test.ShouldBeNil)

	l.Info("hidden")
	l.Warn("shown", "cue", "primary")
	test.That(t, buf.String(), test.ShouldNotContainSubstring, "hidden")
	test.That(t, buf.String(), test.ShouldContainSubstring, "shown")
	test.That(t, buf.String(), test.ShouldContainSubstring, "cue=primary")
}

func TestNewBadLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNamedNil(t *testing.T) {
	l := Named(nil, "audio")
	test.That(t, l, test.ShouldNotBeNil)
	l.Error("dropped")
}
