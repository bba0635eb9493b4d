package mappers

import "github.com/nes-emu/nescore/nesrom"

// mapper1 implements iNES mapper 1 (MMC1): Legend of Zelda, Metroid, Mega
// Man 2, Kid Icarus and roughly a quarter of all licensed NROM-incompatible
// carts use it. Grounded on the shift-register protocol and bank-mode
// semantics of a reference MMC1 implementation in the example pack.
//
// Control is a single 5-bit serial shift register: every CPU write to
// $8000-$FFFF either resets the register (bit 7 set) or shifts in one bit
// (bit 0 of the written value); the fifth consecutive shift-in commits the
// accumulated value to one of four internal registers, selected by which
// address range received that fifth write.
func init() {
	RegisterMapper(1, func() Mapper {
		return &mapper1{
			baseMapper:    newBaseMapper(1, "MMC1"),
			shiftRegister: mmc1ShiftReset,
			prgMode:       3,
		}
	})
}

const mmc1ShiftReset = 0x10

type mapper1 struct {
	*baseMapper

	shiftRegister uint8
	shiftCount    uint8

	mirroring uint8 // 0=single-lower, 1=single-upper, 2=vertical, 3=horizontal
	prgMode   uint8 // 0/1=32KB, 2=fix-first, 3=fix-last
	chrMode   uint8 // 0=8KB, 1=4KB

	chrBank0, chrBank1 uint8
	prgBank            uint8
	prgRAMEnabled      bool
}

func (m *mapper1) Init(r *nesrom.ROM) {
	m.baseMapper.Init(r)
	m.prgRAMEnabled = true
}

func (m *mapper1) prgBanks() uint8 {
	return uint8(m.rom.PrgSize() / 0x4000)
}

func (m *mapper1) CpuRead(addr uint16) uint8 {
	switch {
	case addr >= 0x6000 && addr < 0x8000:
		if m.prgRAMEnabled {
			return m.rom.PrgRAMRead(addr - 0x6000)
		}
		return 0

	case addr >= 0x8000 && addr < 0xC000:
		var bank uint8
		switch m.prgMode {
		case 0, 1:
			bank = m.prgBank &^ 1
		case 2:
			bank = 0
		default: // 3
			bank = m.prgBank
		}
		return m.rom.PrgRead(int(bank)*0x4000 + int(addr-0x8000))

	default: // addr >= 0xC000
		var bank uint8
		switch m.prgMode {
		case 0, 1:
			bank = (m.prgBank &^ 1) | 1
		case 2:
			bank = m.prgBank
		default: // 3
			bank = m.prgBanks() - 1
		}
		return m.rom.PrgRead(int(bank)*0x4000 + int(addr-0xC000))
	}
}

func (m *mapper1) CpuWrite(addr uint16, val uint8) {
	switch {
	case addr >= 0x6000 && addr < 0x8000:
		if m.prgRAMEnabled {
			m.rom.PrgRAMWrite(addr-0x6000, val)
		}

	case addr >= 0x8000:
		if val&0x80 != 0 {
			m.shiftRegister = mmc1ShiftReset
			m.shiftCount = 0
			m.prgMode = 3
			return
		}

		m.shiftRegister = (m.shiftRegister >> 1) | ((val & 1) << 4)
		m.shiftCount++

		if m.shiftCount == 5 {
			m.writeRegister(addr, m.shiftRegister)
			m.shiftRegister = mmc1ShiftReset
			m.shiftCount = 0
		}
	}
}

func (m *mapper1) writeRegister(addr uint16, val uint8) {
	switch {
	case addr < 0xA000:
		m.mirroring = val & 0x03
		m.prgMode = (val >> 2) & 0x03
		m.chrMode = (val >> 4) & 0x01
	case addr < 0xC000:
		m.chrBank0 = val & 0x1F
	case addr < 0xE000:
		m.chrBank1 = val & 0x1F
	default:
		m.prgBank = val & 0x0F
		m.prgRAMEnabled = val&0x10 == 0
	}
}

func (m *mapper1) PpuRead(addr uint16) uint8 {
	return m.rom.ChrRead(m.chrOffset(addr))
}

func (m *mapper1) PpuWrite(addr uint16, val uint8) {
	m.rom.ChrWrite(m.chrOffset(addr), val)
}

func (m *mapper1) chrOffset(addr uint16) int {
	if m.chrMode == 0 {
		bank := m.chrBank0 &^ 1
		if addr >= 0x1000 {
			bank |= 1
		}
		return int(bank)*0x1000 + int(addr&0x0FFF)
	}

	if addr < 0x1000 {
		return int(m.chrBank0)*0x1000 + int(addr)
	}
	return int(m.chrBank1)*0x1000 + int(addr-0x1000)
}

func (m *mapper1) NametableMirror(addr uint16) (int, uint16) {
	switch m.mirroring {
	case 0:
		return headerMirror(MirrorSingleLower, addr)
	case 1:
		return headerMirror(MirrorSingleUpper, addr)
	case 2:
		return headerMirror(MirrorVertical, addr)
	default:
		return headerMirror(MirrorHorizontal, addr)
	}
}
