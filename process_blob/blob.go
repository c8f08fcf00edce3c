package process_blob

import (
	"procmem/process"
)

// ProcessBlob is a copy of one contiguous range of process memory.
type ProcessBlob struct {
	baseaddress process.ProcessMemoryAddress
	data        []byte
}

func NewProcessBlob(baseAddress process.ProcessMemoryAddress, data []byte) *ProcessBlob {
	return &ProcessBlob{
		baseaddress: baseAddress,
		data:        data,
	}
}

func (p *ProcessBlob) Data() []byte {
	return p.data
}

func (p *ProcessBlob) Base() process.ProcessMemoryAddress {
	return p.baseaddress
}

func (p *ProcessBlob) End() process.ProcessMemoryAddress {
	return p.baseaddress + process.ProcessMemoryAddress(len(p.data))
}

func (p *ProcessBlob) Contains(addr process.ProcessMemoryAddress) bool {
	return addr >= p.baseaddress && addr < p.End()
}

// ReadAt copies the bytes of the blob starting at addr into buf and returns
// how many were copied.
func (p *ProcessBlob) ReadAt(addr process.ProcessMemoryAddress, buf []byte) int {
	if !p.Contains(addr) {
		return 0
	}
	return copy(buf, p.data[addr-p.baseaddress:])
}
