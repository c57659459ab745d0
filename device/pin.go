package device

import (
	"log/slog"
	"os"
	"sync"
	"unsafe"
)

// Page lock counts. mlock does not nest, so a page is locked on its first
// holder and unlocked when its last holder releases it.
var (
	pageMu   sync.Mutex
	pageRefs = make(map[uintptr]int)
	pageSize = uintptr(os.Getpagesize())
)

// Pinned is a page-locked region of host memory. Locking is best effort:
// when the OS refuses, the region stays pageable and Locked reports false.
// Regions that share pages may be pinned and released independently.
type Pinned struct {
	buf    []byte
	locked bool
	once   sync.Once
}

// Pin page-locks bytes of host memory starting at ptr
func Pin(ptr unsafe.Pointer, bytes int) *Pinned {
	p := &Pinned{}
	if ptr == nil || bytes <= 0 {
		return p
	}
	p.buf = unsafe.Slice((*byte)(ptr), bytes)

	pageMu.Lock()
	defer pageMu.Unlock()

	fresh := runs(p.buf, func(page uintptr) bool { return pageRefs[page] == 0 })
	for i, run := range fresh {
		if err := lock(run); err != nil {
			for _, done := range fresh[:i] {
				_ = unlock(done)
			}
			slog.Debug("host pinning unavailable, using pageable memory", "bytes", bytes, "err", err)
			return p
		}
	}
	for _, page := range pages(p.buf) {
		pageRefs[page]++
	}
	p.locked = true
	return p
}

// PinSlice pins the backing array of a slice
func PinSlice[T any](vals []T) *Pinned {
	if len(vals) == 0 {
		return &Pinned{}
	}
	var zero T
	return Pin(unsafe.Pointer(&vals[0]), len(vals)*int(unsafe.Sizeof(zero)))
}

// Locked reports whether the region is page-locked
func (p *Pinned) Locked() bool {
	return p.locked
}

// Release drops the region's hold on its pages. Safe to call more than once.
func (p *Pinned) Release() {
	p.once.Do(func() {
		if p.locked {
			pageMu.Lock()
			last := make(map[uintptr]bool)
			for _, page := range pages(p.buf) {
				if pageRefs[page]--; pageRefs[page] <= 0 {
					delete(pageRefs, page)
					last[page] = true
				}
			}
			for _, run := range runs(p.buf, func(page uintptr) bool { return last[page] }) {
				if err := unlock(run); err != nil {
					slog.Debug("host unpin failed", "bytes", len(run), "err", err)
				}
			}
			pageMu.Unlock()
			p.locked = false
		}
		p.buf = nil
	})
}

// pages lists the start address of every page buf touches
func pages(buf []byte) []uintptr {
	start := uintptr(unsafe.Pointer(&buf[0]))
	first := start &^ (pageSize - 1)
	last := (start + uintptr(len(buf)) - 1) &^ (pageSize - 1)
	out := make([]uintptr, 0, (last-first)/pageSize+1)
	for page := first; page <= last; page += pageSize {
		out = append(out, page)
	}
	return out
}

// runs returns the sub-slices of buf covering maximal runs of consecutive
// pages that satisfy keep. mlock and munlock act on whole pages, so a
// sub-slice stands for every page it touches.
func runs(buf []byte, keep func(page uintptr) bool) [][]byte {
	start := uintptr(unsafe.Pointer(&buf[0]))
	end := start + uintptr(len(buf))
	clip := func(page uintptr) (lo, hi int) {
		lo = int(max(page, start) - start)
		hi = int(min(page+pageSize, end) - start)
		return lo, hi
	}

	var out [][]byte
	from := -1
	to := 0
	for _, page := range pages(buf) {
		lo, hi := clip(page)
		if keep(page) {
			if from < 0 {
				from = lo
			}
			to = hi
			continue
		}
		if from >= 0 {
			out = append(out, buf[from:to])
			from = -1
		}
	}
	if from >= 0 {
		out = append(out, buf[from:to])
	}
	return out
}
