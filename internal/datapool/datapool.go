// Package datapool owns the raw byte region the heap carves into segments.
// The region is either an anonymous mapping or a file-backed one; in both
// cases it is a pure byte arena with no on-disk directory, so a file-backed
// restart is a cold start.
package datapool

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

const pageSize = 4096

type Pool struct {
	data []byte
	file *os.File
}

// Open maps a region of the given size. With an empty path the mapping is
// anonymous; otherwise path is created/extended to size and mapped shared.
// With prealloc every page is faulted in before Open returns.
func Open(path string, size int64, prealloc bool) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("datapool size %d: must be positive", size)
	}

	p := &Pool{}
	if path == "" {
		data, err := unix.Mmap(-1, 0, int(size),
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
		if err != nil {
			return nil, fmt.Errorf("mmap anonymous region of %d bytes: %w", size, err)
		}
		p.data = data
		log.Info().Int64("size", size).Msg("[datapool] anonymous region mapped")
	} else {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open datapool file %s: %w", path, err)
		}
		if err = f.Truncate(size); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("truncate datapool file %s to %d bytes: %w", path, size, err)
		}
		data, err := unix.Mmap(int(f.Fd()), 0, int(size),
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("mmap datapool file %s: %w", path, err)
		}
		p.data = data
		p.file = f
		log.Info().Str("path", path).Int64("size", size).Msg("[datapool] file-backed region mapped")
	}

	if prealloc {
		p.fault()
	}
	return p, nil
}

// Bytes returns the whole region. The slice stays valid until Close.
func (p *Pool) Bytes() []byte { return p.data }

func (p *Pool) Size() int64 { return int64(len(p.data)) }

func (p *Pool) Close() error {
	if p.data != nil {
		if err := unix.Munmap(p.data); err != nil {
			return fmt.Errorf("munmap datapool: %w", err)
		}
		p.data = nil
	}
	if p.file != nil {
		if err := p.file.Close(); err != nil {
			return fmt.Errorf("close datapool file: %w", err)
		}
		p.file = nil
	}
	return nil
}

// fault touches one byte per page so the kernel allocates the backing
// pages up front instead of on first write.
func (p *Pool) fault() {
	for off := 0; off < len(p.data); off += pageSize {
		p.data[off] = 0
	}
	log.Info().Int("pages", (len(p.data)+pageSize-1)/pageSize).Msg("[datapool] pages faulted in")
}
