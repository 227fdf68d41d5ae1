package audio

import (
	"testing"
	"time"

	"go.viam.com/test"

	"metal-duck/config"
)

func TestPlanForInteraction(t *testing.T) {
	plan := PlanFromConfig(config.Default().Audio)
	test.That(t, plan.AlternateEvery, test.ShouldEqual, 5)

	for n := uint64(1); n <= 12; n++ {
		seq := plan.ForInteraction(n)
		if n%5 == 0 {
			test.That(t, seq, test.ShouldResemble, plan.Alternate)
		} else {
			test.That(t, seq, test.ShouldResemble, plan.Regular)
		}
	}
	test.That(t, plan.Alternate, test.ShouldResemble, Sequence{
		{Name: "primary"},
		{Name: "primary", Offset: 250 * time.Millisecond},
		{Name: "secondary", Offset: 500 * time.Millisecond},
	})
}

func TestPlanDisabledAlternate(t *testing.T) {
	plan := Plan{Regular: Sequence{{Name: "primary"}}, Alternate: Sequence{{Name: "secondary"}}}
	test.That(t, plan.ForInteraction(5), test.ShouldResemble, plan.Regular)
	test.That(t, plan.ForInteraction(0), test.ShouldResemble, plan.Regular)
}
