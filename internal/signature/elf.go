// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package signature

import (
	"encoding/binary"
	"fmt"
)

var elfMachines = map[uint16]string{
	0x03: "Intel 80386",
	0x08: "MIPS",
	0x14: "PowerPC",
	0x15: "PowerPC64",
	0x28: "ARM",
	0x3E: "x86-64",
	0xB7: "AArch64",
	0xF3: "RISC-V",
}

// ParseELF validates the ELF identification and header, and sizes the file
// as the furthest end among the section header table and the program
// segments.
func ParseELF(data []byte, offset int) (Match, error) {
	buf := data[offset:]
	if len(buf) < 52 {
		return Match{}, fmt.Errorf("elf: short header")
	}

	class, encoding, version := buf[4], buf[5], buf[6]
	if version != 1 {
		return Match{}, fmt.Errorf("elf: invalid version %d", version)
	}

	var bo binary.ByteOrder
	switch encoding {
	case 1:
		bo = binary.LittleEndian
	case 2:
		bo = binary.BigEndian
	default:
		return Match{}, fmt.Errorf("elf: invalid data encoding %d", encoding)
	}

	var (
		phoff, shoff                        uint64
		phentsize, phnum, shentsize, shnum uint64
		ehsize                              uint64
		bits                                int
	)
	switch class {
	case 1:
		bits = 32
		phoff = uint64(bo.Uint32(buf[28:32]))
		shoff = uint64(bo.Uint32(buf[32:36]))
		ehsize = uint64(bo.Uint16(buf[40:42]))
		phentsize = uint64(bo.Uint16(buf[42:44]))
		phnum = uint64(bo.Uint16(buf[44:46]))
		shentsize = uint64(bo.Uint16(buf[46:48]))
		shnum = uint64(bo.Uint16(buf[48:50]))
	case 2:
		if len(buf) < 64 {
			return Match{}, fmt.Errorf("elf: short header")
		}
		bits = 64
		phoff = bo.Uint64(buf[32:40])
		shoff = bo.Uint64(buf[40:48])
		ehsize = uint64(bo.Uint16(buf[52:54]))
		phentsize = uint64(bo.Uint16(buf[54:56]))
		phnum = uint64(bo.Uint16(buf[56:58]))
		shentsize = uint64(bo.Uint16(buf[58:60]))
		shnum = uint64(bo.Uint16(buf[60:62]))
	default:
		return Match{}, fmt.Errorf("elf: invalid class %d", class)
	}

	if (bits == 32 && ehsize != 52) || (bits == 64 && ehsize != 64) {
		return Match{}, fmt.Errorf("elf: invalid header size %d", ehsize)
	}
	if bo.Uint32(buf[20:24]) != 1 {
		return Match{}, fmt.Errorf("elf: invalid object file version")
	}

	if phoff > 1<<40 || shoff > 1<<40 {
		return Match{}, fmt.Errorf("elf: implausible table offsets")
	}

	size := ehsize
	if shnum > 0 {
		size = max(size, shoff+shnum*shentsize)
	}
	minPhentsize := uint64(32)
	if bits == 64 {
		minPhentsize = 56
	}
	if phnum > 0 && phentsize >= minPhentsize {
		size = max(size, phoff+phnum*phentsize)

		// Segment contents may lie past the section headers.
		for i := uint64(0); i < phnum; i++ {
			ph := phoff + i*phentsize
			if ph+phentsize > uint64(len(buf)) {
				break
			}
			var segOff, segSize uint64
			if bits == 32 {
				segOff = uint64(bo.Uint32(buf[ph+4 : ph+8]))
				segSize = uint64(bo.Uint32(buf[ph+16 : ph+20]))
			} else {
				segOff = bo.Uint64(buf[ph+8 : ph+16])
				segSize = bo.Uint64(buf[ph+32 : ph+40])
			}
			if segOff < 1<<40 && segSize < 1<<40 {
				size = max(size, segOff+segSize)
			}
		}
	}

	confidence := ConfidenceMedium
	if size > uint64(len(buf)) {
		confidence = ConfidenceLow
	}

	elfType := map[uint16]string{1: "relocatable", 2: "executable", 3: "shared object", 4: "core file"}[bo.Uint16(buf[16:18])]
	if elfType == "" {
		elfType = "unknown type"
	}
	machine := elfMachines[bo.Uint16(buf[18:20])]
	if machine == "" {
		machine = fmt.Sprintf("machine 0x%x", bo.Uint16(buf[18:20]))
	}

	endian := "LSB"
	if encoding == 2 {
		endian = "MSB"
	}

	return Match{
		Size:        size,
		Confidence:  confidence,
		Description: fmt.Sprintf("ELF %d-bit %s %s, %s", bits, endian, elfType, machine),
	}, nil
}
