package apu

import "testing"

func TestEnvelopeDecay(t *testing.T) {
	e := &envelope{volume: 2}
	e.start = true
	e.clock() // loads decayLevel=15, divider=2

	cases := []struct {
		wantDecay uint8
	}{
		{15}, // divider counts down from 2
		{15},
		{14}, // divider hits 0, decay drops
	}

	for i, tc := range cases {
		e.clock()
		if e.decayLevel != tc.wantDecay {
			t.Errorf("%d: decayLevel = %d, want %d", i, e.decayLevel, tc.wantDecay)
		}
	}
}

func TestEnvelopeConstantVolume(t *testing.T) {
	e := &envelope{volume: 9, constantVolume: true}
	if got := e.output(); got != 9 {
		t.Errorf("output() = %d, want 9 (constant volume)", got)
	}
}

func TestPulseLengthCounterHaltAndClock(t *testing.T) {
	p := &pulse{}
	p.enabled = true
	p.writeTimerHighLength(0b0000_1000) // length table index 1 -> 254

	if p.lengthCounter != 254 {
		t.Fatalf("lengthCounter after write = %d, want 254", p.lengthCounter)
	}

	p.clockLength()
	if p.lengthCounter != 253 {
		t.Errorf("lengthCounter after one clock = %d, want 253", p.lengthCounter)
	}

	p.lengthHalt = true
	p.clockLength()
	if p.lengthCounter != 253 {
		t.Errorf("halted length counter should not decrement, got %d", p.lengthCounter)
	}
}

func TestPulseSweepMuting(t *testing.T) {
	p := &pulse{}
	p.timerPeriod = 5 // below 8, always muted
	if !p.sweepMuting() {
		t.Errorf("expected muting with timerPeriod < 8")
	}

	p.timerPeriod = 0x700
	p.sw.shift = 0
	p.sw.negate = false
	if !p.sweepMuting() {
		t.Errorf("expected muting when target period overflows 11 bits")
	}
}

func TestPulseSampleSilentWhenDisabledOrZeroLength(t *testing.T) {
	p := &pulse{}
	p.timerPeriod = 100
	p.dutyTable = 2
	p.dutyPos = 2 // pulseDutyTable[2][2] == 1
	p.env.constantVolume = true
	p.env.volume = 10

	if got := p.sample(); got != 0 {
		t.Errorf("disabled pulse sample() = %d, want 0", got)
	}

	p.enabled = true
	if got := p.sample(); got != 0 {
		t.Errorf("zero-length-counter pulse sample() = %d, want 0", got)
	}

	p.lengthCounter = 10
	if got := p.sample(); got != 10 {
		t.Errorf("pulse sample() = %d, want 10", got)
	}
}

func TestTriangleStepsAdvanceOnTimerExpiry(t *testing.T) {
	tr := &triangle{enabled: true, lengthCounter: 5, linearCounter: 5, timerPeriod: 0}
	start := tr.step
	tr.clockTimer()
	if tr.step == start {
		t.Errorf("triangle step should advance once timer expires with period 0")
	}
}

func TestTriangleSilentWithZeroCounters(t *testing.T) {
	tr := &triangle{lengthCounter: 0, linearCounter: 5, timerPeriod: 10, timer: 10}
	before := tr.step
	tr.clockTimer()
	if tr.step != before {
		t.Errorf("triangle step shouldn't advance with lengthCounter == 0")
	}
}

func TestNoiseLFSRModeBitChangesTap(t *testing.T) {
	n := &noise{register: 0x41, timerPeriod: 0}
	n.shiftMode = false
	n.clockTimer()
	modeOut := n.register

	n2 := &noise{register: 0x41, timerPeriod: 0}
	n2.shiftMode = true
	n2.clockTimer()

	if modeOut == n2.register {
		t.Errorf("mode-0 and mode-6 taps produced identical feedback from the same seed")
	}
}

func TestStatusRegisterReportsActiveChannelsAndAcksIRQ(t *testing.T) {
	a := New(44100)
	a.pulse1.enabled = true
	a.pulse1.lengthCounter = 5
	a.noise.enabled = true
	a.noise.lengthCounter = 1
	a.frameIRQ = true

	got := a.ReadReg(Status)
	if got&0x01 == 0 {
		t.Errorf("status should report pulse1 active")
	}
	if got&0x08 == 0 {
		t.Errorf("status should report noise active")
	}
	if got&0x40 == 0 {
		t.Errorf("status should report frame IRQ was pending")
	}
	if a.frameIRQ {
		t.Errorf("reading status should acknowledge (clear) the frame IRQ")
	}
}

func TestFrameSequencerMode0FiresIRQAtFinalStep(t *testing.T) {
	a := New(44100)
	a.frameMode = 0
	a.irqInhibit = false
	a.seqResetDelay = 0

	for i := uint32(0); i <= seqStep4Mode0IRQ; i++ {
		if a.frameIRQ {
			t.Fatalf("IRQ fired early, at sequencer step %d", i)
		}
		a.clockFrameSequencer()
	}
	if !a.frameIRQ {
		t.Errorf("expected frame IRQ to be set after stepping through %d cycles", seqStep4Mode0IRQ+1)
	}
}

func TestFrameSequencerMode1NeverFiresIRQ(t *testing.T) {
	a := New(44100)
	a.frameMode = 1
	a.irqInhibit = false
	a.seqResetDelay = 0

	for i := 0; i < int(seqStep5Mode1)*2; i++ {
		a.clockFrameSequencer()
	}
	if a.frameIRQ {
		t.Errorf("5-step frame sequencer mode should never raise an IRQ")
	}
}

func TestWriteFrameCounterIRQInhibitClearsPending(t *testing.T) {
	a := New(44100)
	a.frameIRQ = true

	a.WriteReg(FrameCounter, 0x40) // IRQ inhibit bit set
	if a.frameIRQ {
		t.Errorf("setting the IRQ-inhibit bit should immediately clear a pending frame IRQ")
	}
}

func TestMixSilentWhenAllChannelsDisabled(t *testing.T) {
	a := New(44100)
	if got := a.mix(); got != pulseTable[0]+tndTable[0] {
		t.Errorf("mix() with nothing enabled = %v, want the zero-sample baseline", got)
	}
}
