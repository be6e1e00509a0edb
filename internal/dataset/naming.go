package dataset

import (
	"strconv"
	"strings"
)

// NameSpec assembles canonical container names. The grammar is shared
// by every derived modality and statistic and is part of the on-disk
// format: saved sessions are looked up by these exact strings.
//
// Composition, in order:
//
//	[Interpolated ]<Class> <Metric>[ <Mask>][ ts<Timestep>][ on <Parent>][ slice_size <n> slice_offset <m>][ downsampled by <r>]
//
// Two parameter records that render identically are defined to collide
// in their container's name-keyed map; that is read as "already
// computed". Parameter types must therefore represent every
// distinguishing field in the name.
type NameSpec struct {
	Class  string
	Metric string
	// Mask is PD's image mask token ("top", "bottom"), empty otherwise.
	Mask string
	// Timestep is rendered only when above one; shape metrics are
	// timestep independent and leave it at zero.
	Timestep int
	Parent   string
	// Interpolated prefixes the name when the derivation ran on
	// interpolated rather than raw scanline data.
	Interpolated bool
	SliceSize    int
	SliceOffset  int
	// DownsampledBy appends the downsampling ratio when above one.
	DownsampledBy int
}

func (n NameSpec) String() string {
	var b strings.Builder
	if n.Interpolated {
		b.WriteString("Interpolated ")
	}
	b.WriteString(n.Class)
	if n.Metric != "" {
		b.WriteByte(' ')
		b.WriteString(n.Metric)
	}
	if n.Mask != "" {
		b.WriteByte(' ')
		b.WriteString(n.Mask)
	}
	if n.Timestep > 1 {
		b.WriteString(" ts")
		b.WriteString(strconv.Itoa(n.Timestep))
	}
	if n.Parent != "" {
		b.WriteString(" on ")
		b.WriteString(n.Parent)
	}
	if n.SliceSize > 0 {
		b.WriteString(" slice_size ")
		b.WriteString(strconv.Itoa(n.SliceSize))
		b.WriteString(" slice_offset ")
		b.WriteString(strconv.Itoa(n.SliceOffset))
	}
	if n.DownsampledBy > 1 {
		b.WriteString(" downsampled by ")
		b.WriteString(strconv.Itoa(n.DownsampledBy))
	}
	return b.String()
}
