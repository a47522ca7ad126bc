package drivers

import (
	"bytes"
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/hubertat/pacball/machine"
)

func assertBools(t testing.TB, got, want bool) {
	t.Helper()

	if got != want {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestMockIoSetup(t *testing.T) {
	md := MockIoDriver{}

	assertBools(t, md.IsReady(), false)

	md.Setup(context.Background())
	assertBools(t, md.IsReady(), true)

	md.Close()
	assertBools(t, md.IsReady(), false)
}

func TestMockIoNotReady(t *testing.T) {
	md := MockIoDriver{}

	_, err := md.Inputs()
	if err == nil {
		t.Error("Inputs should fail before Setup")
	}
	err = md.SetOutputs(machine.Outputs{})
	if err == nil {
		t.Error("SetOutputs should fail before Setup")
	}
}

func TestMockIoProbabilityBounds(t *testing.T) {
	t.Run("never asserted", func(t *testing.T) {
		md := MockIoDriver{ChangeProbability: 0, Source: rand.NewSource(1)}
		md.Setup(context.Background())

		in, _ := md.Inputs()
		if in != (machine.Inputs{}) {
			t.Errorf("expected no input asserted, got %+v", in)
		}
	})

	t.Run("always asserted", func(t *testing.T) {
		md := MockIoDriver{ChangeProbability: 1, Source: rand.NewSource(1)}
		md.Setup(context.Background())

		in, _ := md.Inputs()
		for name, state := range in.Map() {
			if !state {
				t.Errorf("%s should be asserted", name)
			}
		}
	})
}

func TestMockIoFrozenInputs(t *testing.T) {
	md := MockIoDriver{Frozen: true, ChangeProbability: 1}
	md.Setup(context.Background())

	want := machine.Inputs{TableSensor: true}
	md.SetInputs(want)

	got, err := md.Inputs()
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("got %+v want %+v", got, want)
	}
}

func TestMockIoOutputs(t *testing.T) {
	md := MockIoDriver{}
	md.Setup(context.Background())

	want := machine.Outputs{OutHopper: true}
	md.SetOutputs(want)
	if got := md.Outputs(); got != want {
		t.Errorf("got %+v want %+v", got, want)
	}
}

func TestMockIoMonitorStateChanges(t *testing.T) {
	md := MockIoDriver{}
	md.Setup(context.Background())

	var buf bytes.Buffer
	md.MonitorStateChanges(&buf)

	md.SetOutputs(machine.Outputs{RayLamp: true})
	md.SetOutputs(machine.Outputs{RayLamp: true})
	md.SetOutputs(machine.Outputs{})

	want := "[ray_lamp] state changed to true\n[ray_lamp] state changed to false\n"
	if buf.String() != want {
		t.Errorf("got %q want %q", buf.String(), want)
	}
}

func TestMockIoPrintStatus(t *testing.T) {
	md := MockIoDriver{ChangeProbability: 0.1, Interval: DefaultMockInterval}
	var buf bytes.Buffer
	md.PrintStatus(&buf)

	if !strings.Contains(buf.String(), "p=0.10") {
		t.Errorf("unexpected status: %s", buf.String())
	}
}
