package flashalgo

import "fmt"

// Validate checks the descriptor's internal consistency and returns a
// *ValidationError listing every violation found.
func (d Descriptor) Validate() error {
	v := &ValidationError{}
	fp := d.Footprint()

	if len(d.Instructions) == 0 {
		v.add("instruction payload is empty")
	}
	if d.RAM.Length == 0 {
		v.add("RAM region is empty")
	} else if !d.RAM.Contains(fp.Start, fp.Length) {
		v.add("instructions 0x%08X+0x%X outside RAM", fp.Start, fp.Length)
	}

	if len(d.Instructions) > 0 && !fp.Contains(d.StaticBase, 1) {
		v.add("static base 0x%08X outside loaded instructions", d.StaticBase)
	}

	for _, e := range Entries {
		off := d.Offset(e) &^ 1
		if len(d.Instructions) > 0 && off >= fp.Length {
			v.add("%s offset 0x%X outside loaded instructions", e, d.Offset(e))
		}
	}

	for _, s := range []struct {
		name string
		seg  Segment
	}{{"RO", d.RO}, {"RW", d.RW}, {"ZI", d.ZI}} {
		if uint64(s.seg.Start)+uint64(s.seg.Size) > uint64(fp.Length) {
			v.add("%s segment 0x%X+0x%X outside loaded instructions", s.name, s.seg.Start, s.seg.Size)
		}
	}

	stack := Region{Start: d.EndStack, Length: d.BeginStack - d.EndStack}
	switch {
	case d.EndStack >= d.BeginStack:
		v.add("stack bottom 0x%08X not below stack top 0x%08X", d.EndStack, d.BeginStack)
	case !d.RAM.Contains(stack.Start, stack.Length):
		v.add("stack 0x%08X-0x%08X outside RAM", d.EndStack, d.BeginStack)
	case stack.overlaps(fp):
		v.add("stack 0x%08X-0x%08X overlaps instructions", d.EndStack, d.BeginStack)
	}

	if d.PageSize == 0 {
		v.add("page size is zero")
	}
	if d.MinProgramLength == 0 {
		v.add("minimum program length is zero")
	} else if d.PageSize%d.MinProgramLength != 0 {
		v.add("minimum program length 0x%X does not divide page size 0x%X", d.MinProgramLength, d.PageSize)
	}

	if !d.RAM.Contains(d.BeginData, d.PageSize) {
		v.add("data buffer 0x%08X+0x%X outside RAM", d.BeginData, d.PageSize)
	}
	for i, b := range d.PageBuffers {
		buf := Region{Start: b, Length: d.PageSize}
		if !d.RAM.Contains(buf.Start, buf.Length) {
			v.add("page buffer %d at 0x%08X outside RAM", i, b)
		}
		if buf.overlaps(fp) {
			v.add("page buffer %d at 0x%08X overlaps instructions", i, b)
		}
		if d.EndStack < d.BeginStack && buf.overlaps(stack) {
			v.add("page buffer %d at 0x%08X overlaps stack", i, b)
		}
		for j := 0; j < i; j++ {
			if buf.overlaps(Region{Start: d.PageBuffers[j], Length: d.PageSize}) {
				v.add("page buffers %d and %d overlap", j, i)
			}
		}
	}

	d.validateSectors(v)

	if len(v.Problems) > 0 {
		return v
	}
	return nil
}

func (d Descriptor) validateSectors(v *ValidationError) {
	if len(d.SectorSizes) == 0 {
		v.add("sector map is empty")
		return
	}
	if d.SectorSizes[0].Offset != 0 {
		v.add("sector map starts at 0x%X, not 0", d.SectorSizes[0].Offset)
	}

	var total uint64
	for i, r := range d.SectorSizes {
		end := uint64(d.FlashSize)
		if i+1 < len(d.SectorSizes) {
			next := d.SectorSizes[i+1].Offset
			if next <= r.Offset {
				v.add("sector map entry %d at 0x%X not ascending", i+1, next)
				return
			}
			end = uint64(next)
		}
		if uint64(r.Offset) >= end {
			v.add("sector map entry %d at 0x%X beyond flash size 0x%X", i, r.Offset, d.FlashSize)
			return
		}
		span := end - uint64(r.Offset)
		if r.Size == 0 {
			v.add("sector map entry %d has zero sector size", i)
			return
		}
		if span%uint64(r.Size) != 0 {
			v.add("sector map entry %d span 0x%X not a multiple of 0x%X", i, span, r.Size)
		}
		total += span / uint64(r.Size) * uint64(r.Size)
	}
	if total != uint64(d.FlashSize) {
		v.add("sectors cover 0x%X bytes, flash size is 0x%X", total, d.FlashSize)
	}
}

func (v *ValidationError) add(format string, args ...interface{}) {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
}
