package process_blob

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"procmem/process"
	"procmem/process/memory_map"
)

const metadataFile = "metadata.json"

type dumpRegion struct {
	Region memory_map.Region `json:"region"`
	File   string            `json:"file,omitempty"`
}

type dumpProcess struct {
	Process process.ProcessDescriptor  `json:"process"`
	Modules []process.ModuleDescriptor `json:"modules"`
	Regions []dumpRegion               `json:"regions"`
}

type dumpMetadata struct {
	Processes []dumpProcess `json:"processes"`
}

// Capture copies every readable committed region of the process behind h.
// Regions larger than maxRegionSize are recorded without content; zero means
// no limit.
func Capture(h process.Handle, desc process.ProcessDescriptor, modules []process.ModuleDescriptor, maxRegionSize uint64) (*Snapshot, error) {
	regions, err := memory_map.Enumerate(h)
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate regions: %w", process.ErrPlatform, err)
	}

	s := NewSnapshot()
	s.AddProcess(desc)
	for _, mod := range modules {
		s.AddModuleDescriptor(mod)
	}

	for _, region := range regions {
		if region.IsFree() {
			continue
		}

		var data []byte
		if region.IsReadable() && (maxRegionSize == 0 || region.Size <= maxRegionSize) {
			data = make([]byte, region.Size)
			n, err := h.ReadMemory(process.ProcessMemoryAddress(region.Base), data)
			if err != nil {
				return nil, fmt.Errorf("read region 0x%x: %w", region.Base, err)
			}
			data = data[:n]
		}

		s.AddRegion(desc.PID, region, data)
	}

	return s, nil
}

// Save writes the snapshot to dirname as metadata.json plus one .bin file per
// region with content.
func (s *Snapshot) Save(dirname string) error {
	if err := os.MkdirAll(dirname, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var metadata dumpMetadata
	for _, p := range s.processes {
		entry := dumpProcess{
			Process: p,
			Modules: s.modules[p.PID],
		}

		mem := s.memory[p.PID]
		if mem != nil {
			for _, region := range mem.Regions {
				dr := dumpRegion{Region: region}
				if blob := findBlob(mem.Blobs, region.Base); blob != nil {
					dr.File = fmt.Sprintf("%d_%x.bin", p.PID, region.Base)
					if err := os.WriteFile(filepath.Join(dirname, dr.File), blob.Data(), 0644); err != nil {
						return fmt.Errorf("failed to write region 0x%x: %w", region.Base, err)
					}
				}
				entry.Regions = append(entry.Regions, dr)
			}
		}

		metadata.Processes = append(metadata.Processes, entry)
	}

	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dirname, metadataFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return nil
}

// Load reads a snapshot previously written by Save.
func Load(dirname string) (*Snapshot, error) {
	metadataBytes, err := os.ReadFile(filepath.Join(dirname, metadataFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata dumpMetadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	s := NewSnapshot()
	for _, entry := range metadata.Processes {
		s.AddProcess(entry.Process)
		for _, mod := range entry.Modules {
			s.AddModuleDescriptor(mod)
		}

		for _, dr := range entry.Regions {
			var data []byte
			if dr.File != "" {
				data, err = os.ReadFile(filepath.Join(dirname, filepath.Base(dr.File)))
				if err != nil {
					return nil, fmt.Errorf("failed to read region 0x%x: %w", dr.Region.Base, err)
				}
			}
			s.AddRegion(entry.Process.PID, dr.Region, data)
		}
	}

	return s, nil
}

func findBlob(blobs []*ProcessBlob, base uint64) *ProcessBlob {
	for _, blob := range blobs {
		if uint64(blob.Base()) == base {
			return blob
		}
	}
	return nil
}
