package target

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/OpenTraceLab/gdflash/pkg/flashalgo"
	"github.com/OpenTraceLab/gdflash/pkg/fmc"
)

// Definition is the static description of a supported part.
type Definition struct {
	Name       string // registry key, lower case
	PartNumber string
	Vendor     string
	MemoryMap  *MemoryMap
	Algo       flashalgo.Descriptor
	Registers  fmc.Registers
}

// Flash returns the flash region bound to the algorithm.
func (d *Definition) Flash() Region {
	if r, ok := d.MemoryMap.BootMemory(); ok {
		return r
	}
	flash := d.MemoryMap.RegionsOfKind(KindFlash)
	if len(flash) == 0 {
		return Region{}
	}
	return flash[0]
}

// Validate checks the algorithm and its agreement with the memory map.
func (d *Definition) Validate() error {
	if err := d.Algo.Validate(); err != nil {
		return fmt.Errorf("%s: %w", d.PartNumber, err)
	}
	flash := d.Flash()
	if flash.Kind != KindFlash || flash.Start != d.Algo.FlashStart || flash.Length != d.Algo.FlashSize {
		return fmt.Errorf("%s: flash region %s does not match algorithm", d.PartNumber, flash)
	}
	ram, ok := d.MemoryMap.RegionAt(d.Algo.RAM.Start)
	if !ok || ram.Kind != KindRAM || !ram.Contains(d.Algo.RAM.Start, d.Algo.RAM.Length) {
		return fmt.Errorf("%s: algorithm RAM 0x%08X not in a RAM region", d.PartNumber, d.Algo.RAM.Start)
	}
	return nil
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Definition)
)

// Register adds def to the registry. It panics on an invalid definition
// or a duplicate name, as registration happens from init.
func Register(def *Definition) {
	if err := def.Validate(); err != nil {
		panic(err)
	}
	key := strings.ToLower(def.Name)

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[key]; dup {
		panic("target: duplicate definition " + key)
	}
	registry[key] = def
}

// ByName looks up a definition, ignoring case.
func ByName(name string) (*Definition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	def, ok := registry[strings.ToLower(name)]
	return def, ok
}

// Names lists registered definitions in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
