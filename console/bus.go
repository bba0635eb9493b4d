package console

import (
	"image"
	"math"

	"github.com/golang/glog"
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/nes-emu/nescore/apu"
	"github.com/nes-emu/nescore/cpu"
	"github.com/nes-emu/nescore/mappers"
	"github.com/nes-emu/nescore/ppu"
)

const (
	NES_BASE_MEMORY = 0x800 // 2KB built-in RAM

	MAX_ADDRESS          = math.MaxUint16
	MAX_NES_BASE_RAM     = 0x1FFF
	MAX_PPU_REG_MIRRORED = 0x3FFF
	MAX_IO_REG           = 0x4020
)

// CPU-bus addresses this package decodes directly rather than handing
// off to the PPU/APU/mapper.
const (
	OAMDMA      = 0x4014
	CTRL1       = 0x4016
	CTRL2       = 0x4017
	apuSampleHz = 44100
)

// patternTableDim is the pixel width/height of one rendered pattern table
// (16x16 tiles of 8x8 pixels each), used to size the --pt viewer panel.
const patternTableDim = 128

// Bus is the console: the shared 16-bit address space plus everything
// that hangs off it. It implements cpu.Bus, ppu.Bus, and ebiten.Game.
type Bus struct {
	cpu    *cpu.CPU
	ppu    *ppu.PPU
	apu    *apu.APU
	mapper mappers.Mapper
	ram    []uint8
	ticks  uint64

	pad1, pad2 *controller

	// showPatternTables enables the --pt debug panel: ebiten runs a
	// single window per process, so the pattern tables are composited
	// alongside the game screen rather than opened as a second window.
	showPatternTables bool
}

// EnablePatternTableViewer turns on the --pt side panel showing both CHR
// pattern tables, redrawn every frame.
func (b *Bus) EnablePatternTableViewer() {
	b.showPatternTables = true
}

func New(m mappers.Mapper) *Bus {
	b := &Bus{
		mapper: m,
		ram:    make([]uint8, NES_BASE_MEMORY),
		pad1:   newController(player1Keys),
		pad2:   newController(player2Keys),
	}

	b.cpu = cpu.New(b)
	b.ppu = ppu.New(b)
	b.apu = apu.New(apuSampleHz)
	b.cpu.Reset()

	w, h := b.ppu.GetResolution()
	ebiten.SetWindowSize(w*2, h*2) // Start with 2x the screen size
	ebiten.SetWindowTitle("nescore")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	return b
}

// Samples exposes the mixed audio stream for the host's audio driver;
// per spec.md §5, the APU is the only state shared between the
// render/CPU goroutine and the audio callback goroutine.
func (b *Bus) Samples() <-chan float32 {
	return b.apu.Samples()
}

// EnableAudioRecording turns on WAV capture of the mixed stream, used
// by --debug.
func (b *Bus) EnableAudioRecording(path string) error {
	return b.apu.EnableRecording(path)
}

func (b *Bus) DisableAudioRecording() error {
	return b.apu.DisableRecording()
}

// SaveRAM writes the cartridge's battery-backed PRG-RAM to its save file,
// a no-op if the cartridge has none. Callers should invoke this on clean
// teardown.
func (b *Bus) SaveRAM() error {
	return b.mapper.SaveRAM()
}

// Layout returns the constant resolution of the NES and is part of
// the ebiten.Game interface. By returning constants here, we force
// ebiten to scale the display when the window size changes. When the
// --pt viewer is enabled, the two pattern tables are appended to the
// right of the game screen.
func (b *Bus) Layout(w, h int) (int, int) {
	gw, gh := b.ppu.GetResolution()
	if b.showPatternTables {
		gw += 2 * patternTableDim
	}
	return gw, gh
}

// Draw updates the displayed ebiten window with the current state of
// the PPU, plus the pattern-table panel when --pt is enabled.
func (b *Bus) Draw(screen *ebiten.Image) {
	px := b.ppu.GetPixels()
	pix := make([]byte, 0, len(px)*4)
	for _, c := range px {
		pix = append(pix, c...)
	}

	gw, gh := b.ppu.GetResolution()
	screen.SubImage(image.Rect(0, 0, gw, gh)).(*ebiten.Image).WritePixels(pix)

	if !b.showPatternTables {
		return
	}

	for table := 0; table < 2; table++ {
		tpx := b.ppu.PatternTable(table)
		tpix := make([]byte, 0, len(tpx)*4)
		for _, c := range tpx {
			tpix = append(tpix, c...)
		}
		x0 := gw + table*patternTableDim
		sub := screen.SubImage(image.Rect(x0, 0, x0+patternTableDim, patternTableDim)).(*ebiten.Image)
		sub.WritePixels(tpix)
	}
}

// Update is called by ebiten roughly every 1/60s and will be our
// driver for the emulation.
func (b *Bus) Update() error {
	// Emulation runs on its own goroutine (see Run); ebiten still
	// requires this method to satisfy ebiten.Game.
	return nil
}

// TriggerNMI is used by the PPU to signal the CPU that it is in vblank.
func (b *Bus) TriggerNMI() {
	b.cpu.TriggerNMI()
}

// ChrRead is used by the PPU to read pattern-table bytes, routed
// through the mapper's bank selection.
func (b *Bus) ChrRead(start, end uint16) []uint8 {
	out := make([]uint8, 0, end-start)
	for a := start; a < end; a++ {
		out = append(out, b.mapper.PpuRead(a))
	}
	return out
}

// ChrWrite is used by the PPU for CHR-RAM boards.
func (b *Bus) ChrWrite(addr uint16, val uint8) {
	b.mapper.PpuWrite(addr, val)
}

// MirrorNametable asks the mapper how it wants the four logical
// nametables laid out across the PPU's 2KB of physical VRAM; MMC1 and
// MMC3 can change the answer at runtime from a register write.
func (b *Bus) MirrorNametable(addr uint16) uint16 {
	table, offset := b.mapper.NametableMirror(addr)
	return uint16(table)*0x400 + offset
}

// ScanlineTick lets the mapper clock its scanline-based IRQ counter
// (MMC3); see ppu.Bus for when the PPU calls this.
func (b *Bus) ScanlineTick() {
	b.mapper.ScanlineTick()
}

func (b *Bus) Read(addr uint16) uint8 {
	// https://www.nesdev.org/wiki/CPU_memory_map
	switch {
	case addr <= MAX_NES_BASE_RAM:
		// 0x800-0x1FFF mirrors 0x0000-0x07FF
		return b.ram[addr&0x07FF]
	case addr <= MAX_PPU_REG_MIRRORED:
		// PPU registers are mirrored every 8 bytes between 0x2000 and 0x4000
		return b.ppu.ReadReg(addr & 0x2007)
	case addr == apu.Status:
		return b.apu.ReadReg(addr)
	case addr == CTRL1:
		return b.pad1.read()
	case addr == CTRL2:
		return b.pad2.read()
	case addr < MAX_IO_REG:
		// $4000-$4014 (write-only APU/DMA registers) and $4018-$401F
		// (unimplemented APU/IO test registers). Real
		// hardware returns whatever was last on the bus; we have no
		// bus-capacitance model so this just reads as 0.
		glog.V(2).Infof("open-bus read at %#04x", addr)
		return 0
	case addr <= MAX_ADDRESS:
		return b.mapper.CpuRead(addr)
	}

	return 0
}

func (b *Bus) Write(addr uint16, val uint8) {
	// https://www.nesdev.org/wiki/CPU_memory_map
	switch {
	case addr <= MAX_NES_BASE_RAM:
		// 0x800-0x1FFF mirrors 0x0000-0x07FF
		b.ram[addr&0x07FF] = val
	case addr <= MAX_PPU_REG_MIRRORED:
		// PPU registers are mirrored every 8 bytes between 0x2000 and 0x4000
		b.ppu.WriteReg(addr&0x2007, val)
	case addr == OAMDMA:
		b.doOAMDMA(val)
	case addr == CTRL1:
		// A single strobe write latches both controllers together.
		b.pad1.write(val)
		b.pad2.write(val)
	case addr < MAX_IO_REG:
		// 0x4000-0x4013, 0x4015, 0x4017 all land on the APU.
		b.apu.WriteReg(addr, val)
	case addr <= MAX_ADDRESS:
		b.mapper.CpuWrite(addr, val)
	}
}

// doOAMDMA copies 256 bytes starting at val<<8 into OAM and stalls the
// CPU for 513 or 514 cycles depending on whether the write landed on an
// even or odd CPU cycle, matching the documented parity-dependent
// behavior of real OAM DMA.
func (b *Bus) doOAMDMA(val uint8) {
	base := uint16(val) << 8
	for i := 0; i < 256; i++ {
		b.ppu.OAMDMAWrite(b.Read(base + uint16(i)))
	}

	stall := 513
	if b.cpu.Cycles()%2 != 0 {
		stall = 514
	}
	b.cpu.Stall(stall)
}

// Step advances the console by exactly one CPU cycle: one CPU Step,
// three PPU dots, and one APU tick, with the mapper/APU IRQ lines
// ORed together and fed back to the CPU before the next cycle. It
// returns true on the cycle where a new instruction was fetched.
func (b *Bus) Step() bool {
	fetched := b.cpu.Step()
	b.ppu.Tick(3)
	b.apu.Tick(b.cpu.Cycles())
	b.cpu.SetIRQLine(b.mapper.IRQLine() || b.apu.IRQLine())
	b.ticks++
	return fetched
}

// Run drives the emulation until stop is closed; intended to run on
// its own goroutine, separate from the ebiten render/input goroutine.
func (b *Bus) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
			b.Step()
		}
	}
}

// PC returns the CPU's current program counter, used by --break to detect
// when to drop into the REPL.
func (b *Bus) PC() uint16 {
	return b.cpu.PC
}

// RunUntilBreak drives the emulation until either stop is closed or PC
// reaches addr at an instruction boundary, returning true in the latter
// case.
func (b *Bus) RunUntilBreak(stop <-chan struct{}, addr uint16) bool {
	for {
		select {
		case <-stop:
			return false
		default:
		}
		fetched := b.Step()
		if fetched && b.cpu.PC == addr {
			return true
		}
	}
}

