// Package mappers implements and registers mappers that are
// referenced numerically by iNES and NES2.0 ROM files.
package mappers

import (
	"fmt"

	"github.com/nes-emu/nescore/nesrom"
)

// A global registry of mapper constructors, keyed by mapper id.
var allMappers = map[uint16]func() Mapper{}

// RegisterMapper registers a constructor for a mapper id. Mappers
// self-register from an init() in their own file, mirroring the
// per-variant files (mapper0.go, mapper1.go, ...) in this package.
func RegisterMapper(id uint16, newFn func() Mapper) {
	if _, ok := allMappers[id]; ok {
		panic(fmt.Sprintf("mapper id %d is already registered", id))
	}
	allMappers[id] = newFn
}

// Get constructs and initializes a mapper for the given ROM, or returns a
// nesrom.LoadError if the ROM's declared mapper id has no registered
// implementation.
func Get(rom *nesrom.ROM) (Mapper, error) {
	id := rom.MapperNum()
	newFn, ok := allMappers[id]
	if !ok {
		return nil, &nesrom.LoadError{Err: fmt.Errorf("unsupported mapper id %d", id)}
	}

	m := newFn()
	m.Init(rom)
	return m, nil
}

// Mirroring modes a mapper's NametableMirror may resolve to, independent
// of what the cartridge header declares (MMC1 and MMC3 can switch these
// at runtime).
const (
	MirrorHorizontal = iota
	MirrorVertical
	MirrorFourScreen
	MirrorSingleLower
	MirrorSingleUpper
)

// Mapper is the cartridge's bus-decoding capability: it owns PRG/CHR bank
// selection state and exposes the six bus operations plus the two signal
// lines spec.md §4.4 describes.
type Mapper interface {
	ID() uint16
	Init(*nesrom.ROM)
	Name() string

	// CpuRead/CpuWrite decode the cartridge region of the CPU bus,
	// $4020-$FFFF (PRG-RAM included, at $6000-$7FFF).
	CpuRead(addr uint16) uint8
	CpuWrite(addr uint16, val uint8)

	// PpuRead/PpuWrite decode the cartridge region of the PPU bus,
	// $0000-$1FFF (CHR-ROM/RAM pattern tables).
	PpuRead(addr uint16) uint8
	PpuWrite(addr uint16, val uint8)

	// NametableMirror translates a nametable address in $2000-$2FFF to
	// a 0-or-1 physical-nametable index and an offset within it.
	NametableMirror(addr uint16) (table int, offset uint16)

	// ScanlineTick advances mapper-internal IRQ counters; invoked by
	// the PPU once per visible scanline when rendering is enabled
	// (the approximation spec.md §4.4 calls for in place of true
	// PPU-A12 edge detection).
	ScanlineTick()

	// IRQLine reports whether the mapper's IRQ line is currently
	// asserted; polled by the CPU at each instruction boundary.
	IRQLine() bool

	HasSaveRAM() bool

	// SaveRAM writes battery-backed PRG-RAM to its save file, a no-op
	// if the cartridge has none. Called at console teardown.
	SaveRAM() error
}

// baseMapper holds the fields every mapper variant needs: a reference to
// the loaded ROM and a human-readable name. Mappers with no IRQ line embed
// baseMapper and get a permanently-false IRQLine for free.
type baseMapper struct {
	id   uint16
	rom  *nesrom.ROM
	name string
}

func newBaseMapper(id uint16, name string) *baseMapper {
	return &baseMapper{id: id, name: name}
}

func (bm *baseMapper) ID() uint16 {
	return bm.id
}

func (bm *baseMapper) String() string {
	return bm.name
}

func (bm *baseMapper) Name() string {
	return bm.name
}

func (bm *baseMapper) Init(r *nesrom.ROM) {
	bm.rom = r
}

func (bm *baseMapper) HasSaveRAM() bool {
	return bm.rom.HasSaveRAM()
}

func (bm *baseMapper) SaveRAM() error {
	return bm.rom.SaveRAM()
}

func (bm *baseMapper) ScanlineTick() {}

func (bm *baseMapper) IRQLine() bool { return false }

// headerMirror translates a nametable address using a fixed two-way split
// (vertical/horizontal/single-screen). Every mapper here uses it: NROM and
// UxROM pass the header's mode, MMC1 and MMC3 their register-selected
// mode. mode follows the Mirror* constants above; MirrorFourScreen has no
// extra VRAM behind it and is treated as horizontal.
func headerMirror(mode uint8, addr uint16) (int, uint16) {
	a := (addr - 0x2000) % 0x1000
	nt := a / 0x400
	offset := a % 0x400

	switch mode {
	case MirrorVertical:
		return int(nt % 2), offset
	case MirrorSingleLower:
		return 0, offset
	case MirrorSingleUpper:
		return 1, offset
	default: // MirrorHorizontal, MirrorFourScreen
		return int(nt / 2), offset
	}
}
