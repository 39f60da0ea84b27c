package gfxtrack

// stateAddresser maps (mip level, array layer) coordinates to tracking-unit
// indices for one image. With fine-grained tracking disabled the whole image
// is a single unit; enabling UsageTrackPerMip and/or UsageTrackPerLayer
// multiplies the unit count by the respective axis, letting disjoint
// subresources be in different states at the same time.
type stateAddresser struct {
	mips, layers uint32
}

func addresserFor(img *Image) stateAddresser {
	a := stateAddresser{mips: 1, layers: 1}
	if img.Usage&UsageTrackPerMip != 0 {
		a.mips = img.MipLevels
	}
	if img.Usage&UsageTrackPerLayer != 0 {
		a.layers = img.ArrayLayers
	}
	return a
}

func (a stateAddresser) unitCount() int {
	return int(a.mips * a.layers)
}

// indices returns the tracking-unit indices covered by a subrange, rounded
// up to whole units. A unit is included as soon as the subrange overlaps it.
func (a stateAddresser) indices(img *Image, sub ImageSubrange) []int {
	sub = img.resolveSubrange(sub)

	mipLo, mipHi := uint32(0), a.mips
	if a.mips > 1 {
		mipLo = sub.BaseMip
		mipHi = sub.BaseMip + sub.NumMips
	}
	layerLo, layerHi := uint32(0), a.layers
	if a.layers > 1 {
		layerLo = sub.BaseLayer
		layerHi = sub.BaseLayer + sub.NumLayers
	}

	out := make([]int, 0, (mipHi-mipLo)*(layerHi-layerLo))
	for m := mipLo; m < mipHi; m++ {
		for l := layerLo; l < layerHi; l++ {
			out = append(out, int(m*a.layers+l))
		}
	}
	return out
}

// unitSubrange returns the subresource range covered by one tracking unit.
func (a stateAddresser) unitSubrange(img *Image, idx int) ImageSubrange {
	sub := img.wholeSubrange()
	if a.mips > 1 {
		sub.BaseMip = uint32(idx) / a.layers
		sub.NumMips = 1
	}
	if a.layers > 1 {
		sub.BaseLayer = uint32(idx) % a.layers
		sub.NumLayers = 1
	}
	return sub
}

// allIndices returns every tracking-unit index of the image.
func (a stateAddresser) allIndices() []int {
	out := make([]int, a.unitCount())
	for i := range out {
		out[i] = i
	}
	return out
}
