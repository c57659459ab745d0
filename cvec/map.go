package cvec

import (
	"fmt"
	"sort"

	"github.com/notargets/wem/device"
	"github.com/notargets/wem/hypercube"
)

// Map is a named set of device vectors sharing one shape
type Map struct {
	vecs map[string]*ComplexVector
}

// NewMap allocates one zeroed vector per name
func NewMap(dev *device.Device, hyper *hypercube.Hypercube, grid, block device.Dim3,
	names ...string) (*Map, error) {
	m := &Map{vecs: make(map[string]*ComplexVector, len(names))}
	for _, name := range names {
		if _, exists := m.vecs[name]; exists {
			m.Free()
			return nil, fmt.Errorf("duplicate vector name %q", name)
		}
		v, err := New(dev, hyper, grid, block)
		if err != nil {
			m.Free()
			return nil, fmt.Errorf("allocating %q: %w", name, err)
		}
		m.vecs[name] = v
	}
	return m, nil
}

// Get panics on an unknown name; names are fixed at construction
func (m *Map) Get(name string) *ComplexVector {
	v, ok := m.vecs[name]
	if !ok {
		panic(fmt.Sprintf("no vector named %q", name))
	}
	return v
}

func (m *Map) Names() []string {
	names := make([]string, 0, len(m.vecs))
	for name := range m.vecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Map) SetLaunch(grid, block device.Dim3) {
	for _, v := range m.vecs {
		v.SetLaunch(grid, block)
	}
}

func (m *Map) Free() {
	for _, v := range m.vecs {
		v.Free()
	}
}
