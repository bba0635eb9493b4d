package mappers

// mapper2 implements iNES mapper 2 (UxROM): a switchable 16 KiB PRG bank
// at $8000-$BFFF and a fixed-to-last 16 KiB bank at $C000-$FFFF. CHR is
// not bank switched and is whatever the ROM provides; UxROM headers
// declare no CHR-ROM, so nesrom gives them 8 KiB of CHR-RAM. Any CPU write to $8000-$FFFF
// selects the low bank; the low bits used vary by board but using all 8
// bits and letting ROM.PrgRead's modulo wrap handles every real cart size.
func init() {
	RegisterMapper(2, func() Mapper {
		return &mapper2{baseMapper: newBaseMapper(2, "UxROM")}
	})
}

type mapper2 struct {
	*baseMapper

	lowBank uint8
}

func (m *mapper2) prgBanks() uint16 {
	return uint16(m.rom.PrgSize() / 0x4000)
}

func (m *mapper2) CpuRead(addr uint16) uint8 {
	switch {
	case addr >= 0x6000 && addr < 0x8000:
		return m.rom.PrgRAMRead(addr - 0x6000)
	case addr >= 0x8000 && addr < 0xC000:
		return m.rom.PrgRead(int(m.lowBank)*0x4000 + int(addr-0x8000))
	default:
		last := m.prgBanks() - 1
		return m.rom.PrgRead(int(last)*0x4000 + int(addr-0xC000))
	}
}

func (m *mapper2) CpuWrite(addr uint16, val uint8) {
	switch {
	case addr >= 0x6000 && addr < 0x8000:
		m.rom.PrgRAMWrite(addr-0x6000, val)
	case addr >= 0x8000:
		m.lowBank = val
	}
}

func (m *mapper2) PpuRead(addr uint16) uint8 {
	return m.rom.ChrRead(int(addr))
}

func (m *mapper2) PpuWrite(addr uint16, val uint8) {
	m.rom.ChrWrite(int(addr), val)
}

func (m *mapper2) NametableMirror(addr uint16) (int, uint16) {
	return headerMirror(m.rom.MirroringMode(), addr)
}
