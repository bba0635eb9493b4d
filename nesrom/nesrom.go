// Package nesrom implements support for the NES (iNES) ROM
// format. https://www.nesdev.org/wiki/INES
package nesrom

import (
	"fmt"
	"os"
	"strings"

	"github.com/golang/glog"
)

// LoadError distinguishes a fatal, user-reportable ROM load failure
// (missing file, truncated header, bad magic, unsupported mapper id)
// from any other error. cmd/nescore maps a LoadError to exit code 1.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %q: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

type PlayChoicePROM struct {
	Data       [16]byte
	CounterOut [16]byte
}

// ROM holds the parsed, immutable contents of an iNES image: PRG-ROM and
// CHR (ROM or RAM) are the cartridge's program and graphics data; prgRAM is
// the optional battery-backed save memory at CPU $6000-$7FFF.
type ROM struct {
	path      string
	h         *Header
	trainer   []byte // if present
	prg       []byte // 16384 * x bytes; x from header
	chr       []byte // CHR-ROM (8192 * y bytes) or CHR-RAM (8192 bytes) if y==0
	chrIsRAM  bool
	prgRAM    []byte
	pcInstRom []byte          // if present
	pcPROM    *PlayChoicePROM // if present; often missing - see PC10 ROM-Images
}

const (
	TRAINER_SIZE   = 512
	PRG_BLOCK_SIZE = 16384
	CHR_BLOCK_SIZE = 8192
	PC_INST_SIZE   = 8192
	PC_PROM_SIZE   = 32

	// DEFAULT_PRG_RAM_BLOCKS is used when flags8 is zero but the battery
	// bit in flags6 declares PRG-RAM present.
	DEFAULT_PRG_RAM_BLOCKS = 1
	PRG_RAM_BLOCK_SIZE     = 8192
)

func New(path string) (*ROM, error) {
	rf, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer rf.Close()

	hbytes := make([]byte, 16)
	n, err := rf.Read(hbytes)
	if n != 16 || err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("couldn't read header: %w", err)}
	}

	h := parseHeader(hbytes)
	if !h.isINesFormat() {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("bad magic %q, not an iNES image", h.constant)}
	}

	r := &ROM{path: path, h: h}

	if r.h.hasTrainer() {
		r.trainer = make([]byte, TRAINER_SIZE)
		if n, err := rf.Read(r.trainer); n != TRAINER_SIZE || err != nil {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("error reading trainer data: %w", err)}
		}
	}

	s := PRG_BLOCK_SIZE * int(r.h.prgSize)
	r.prg = make([]byte, s)
	if n, err := rf.Read(r.prg); n != s || err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("error reading PRG ROM (read %d, wanted %d): %w", n, s, err)}
	}

	if r.h.chrSize == 0 {
		// CHR-RAM: no data follows the header for this region.
		r.chr = make([]byte, CHR_BLOCK_SIZE)
		r.chrIsRAM = true
	} else {
		s = CHR_BLOCK_SIZE * int(r.h.chrSize)
		r.chr = make([]byte, s)
		if n, err := rf.Read(r.chr); n != s || err != nil {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("error reading CHR ROM (read %d, wanted %d): %w", n, s, err)}
		}
	}

	if r.h.hasPlayChoice() {
		r.pcInstRom = make([]byte, PC_INST_SIZE)
		if n, err := rf.Read(r.pcInstRom); n != PC_INST_SIZE || err != nil {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("error reading PlayChoice INST ROM (n=%d; wanted %d): %w", n, PC_INST_SIZE, err)}
		}

		pcprom := make([]byte, PC_PROM_SIZE)
		if n, err := rf.Read(pcprom); n != PC_PROM_SIZE || err != nil {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("error reading PlayChoice PROM (n=%d, wanted %d): %w", n, PC_PROM_SIZE, err)}
		}
	}

	blocks := r.h.prgRAMSize()
	if blocks == 0 {
		blocks = DEFAULT_PRG_RAM_BLOCKS
	}
	r.prgRAM = make([]byte, PRG_RAM_BLOCK_SIZE*int(blocks))

	if r.h.hasPrgRAM() {
		if data, err := os.ReadFile(r.SaveFilePath()); err == nil {
			copy(r.prgRAM, data)
		}
	}

	return r, nil
}

// SaveFilePath returns the battery-backed-RAM save file path for this ROM:
// the ROM path with its extension replaced by ".srm".
func (r *ROM) SaveFilePath() string {
	ext := len(r.path)
	for i := len(r.path) - 1; i >= 0; i-- {
		if r.path[i] == '.' {
			ext = i
			break
		}
		if r.path[i] == '/' {
			break
		}
	}
	return r.path[:ext] + ".srm"
}

// SaveRAM writes PRG-RAM to the save file when the cartridge declares
// battery-backed memory. Called at teardown.
func (r *ROM) SaveRAM() error {
	if !r.h.hasPrgRAM() {
		return nil
	}
	return os.WriteFile(r.SaveFilePath(), r.prgRAM, 0644)
}

func (r *ROM) NumPrgBlocks() uint8 {
	return r.h.prgSize
}

func (r *ROM) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s\n", r.h))
	if r.h.hasTrainer() {
		sb.WriteString(fmt.Sprintf("Trainer: %v\n", r.trainer))
	}
	sb.WriteString(fmt.Sprintf("PRG: %d bytes, CHR: %d bytes (RAM=%v)\n", len(r.prg), len(r.chr), r.chrIsRAM))

	return sb.String()
}

func (r *ROM) PrgSize() int { return len(r.prg) }
func (r *ROM) ChrSize() int { return len(r.chr) }

// PrgRead takes a bank-resolved int offset, not a raw CPU address: callers
// with more than 4 PRG banks (MMC1/UxROM/MMC3 carts over 64 KiB) compute
// offsets past 0xFFFF, which a uint16 parameter would truncate before the
// modulo below ever saw it.
func (r *ROM) PrgRead(offset int) uint8 {
	return r.prg[offset%len(r.prg)]
}

// PrgWrite stores val in the PRG buffer at offset (wrapped modulo its
// size). No mapper calls it: mappers treat CPU writes to $8000-$FFFF as
// register writes or drop them, and route $6000-$7FFF writes to
// PrgRAMWrite.
func (r *ROM) PrgWrite(offset int, val uint8) {
	r.prg[offset%len(r.prg)] = val
}

// ChrRead takes a bank-resolved int offset for the same reason as PrgRead:
// MMC3 CHR banks alone run past 0xFFFF on carts with more than 64 KiB CHR.
func (r *ROM) ChrRead(offset int) uint8 {
	return r.chr[offset%len(r.chr)]
}

func (r *ROM) ChrWrite(offset int, val uint8) {
	if !r.chrIsRAM {
		glog.V(2).Infof("chr write to offset %#x ignored: cartridge has CHR-ROM, not CHR-RAM", offset)
		return
	}
	r.chr[offset%len(r.chr)] = val
}

func (r *ROM) ChrIsRAM() bool { return r.chrIsRAM }

func (r *ROM) PrgRAMRead(addr uint16) uint8 {
	if len(r.prgRAM) == 0 {
		return 0
	}
	return r.prgRAM[int(addr)%len(r.prgRAM)]
}

func (r *ROM) PrgRAMWrite(addr uint16, val uint8) {
	if len(r.prgRAM) == 0 {
		return
	}
	r.prgRAM[int(addr)%len(r.prgRAM)] = val
}

func (r *ROM) MapperNum() uint16 {
	return uint16(r.h.mapperNum())
}

func (r *ROM) MirroringMode() uint8 {
	return r.h.mirroringMode()
}

func (r *ROM) HasSaveRAM() bool {
	return r.h.hasPrgRAM()
}
