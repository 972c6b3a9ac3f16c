// Package urlpicker chooses which generated variant to serve for a display
// width. It relies only on the naming convention and never touches the
// filesystem.
package urlpicker

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/menta2k/appropriate-images/pkg/naming"
	"github.com/menta2k/appropriate-images/pkg/types"
)

// DefaultHiResRatio is the device pixel ratio from which a display counts as
// high resolution.
const DefaultHiResRatio = 1.3

// Environment answers the questions a picker asks about the client
type Environment interface {
	HighResolution(ratio float64) bool
	SupportsWebP() bool
}

// Request describes one URL lookup
type Request struct {
	ImageID string
	Config  types.ImageConfig
	// Width is the available display width in CSS pixels. Zero means unlimited.
	Width int
	// ImageDirectory is prefixed to the file name, with a slash if needed.
	ImageDirectory string
	// HiResRatio defaults to DefaultHiResRatio.
	HiResRatio float64
}

// Picker selects variant URLs, memoizing environment answers
type Picker struct {
	env Environment

	mu    sync.Mutex
	hiRes map[float64]bool
	webp  *bool
}

// New creates a Picker for an environment
func New(env Environment) *Picker {
	return &Picker{env: env, hiRes: make(map[float64]bool)}
}

// Reset forgets memoized environment answers
func (p *Picker) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hiRes = make(map[float64]bool)
	p.webp = nil
}

func (p *Picker) highResolution(ratio float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.hiRes[ratio]; ok {
		return v
	}
	v := p.env.HighResolution(ratio)
	p.hiRes[ratio] = v
	return v
}

func (p *Picker) supportsWebP() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.webp == nil {
		v := p.env.SupportsWebP()
		p.webp = &v
	}
	return *p.webp
}

// URL returns the variant to load: the narrowest size at least as wide as the
// requested width, scaled up on high resolution displays, or the widest size
// when none is wide enough. The WebP sibling is chosen when supported.
func (p *Picker) URL(req Request) (string, error) {
	if req.ImageID == "" {
		return "", errors.New("imageId is required")
	}
	if req.Config == nil {
		return "", errors.New("imageConfig is required")
	}
	entry, ok := req.Config[req.ImageID]
	if !ok {
		return "", fmt.Errorf("%s is not a valid image id", req.ImageID)
	}
	if len(entry.Sizes) == 0 {
		return "", fmt.Errorf("%s has no sizes", req.ImageID)
	}

	sizes := make([]types.SizeSpec, len(entry.Sizes))
	copy(sizes, entry.Sizes)
	sort.SliceStable(sizes, func(i, j int) bool { return sizes[i].Width < sizes[j].Width })

	ratio := req.HiResRatio
	if ratio <= 0 {
		ratio = DefaultHiResRatio
	}
	width := math.Inf(1)
	if req.Width > 0 {
		width = float64(req.Width)
	}
	if p.highResolution(ratio) {
		width *= ratio
	}

	selected := sizes[len(sizes)-1]
	for _, size := range sizes {
		if width <= float64(size.Width) {
			selected = size
			break
		}
	}

	ext := ""
	if p.supportsWebP() {
		ext = naming.WebPExt
	}
	name := naming.Variant(entry.Basename, selected.Width, selected.Height, ext)

	dir := req.ImageDirectory
	if dir != "" && !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	return dir + name, nil
}

// ResolutionQuery is the CSS media query matching displays at or above ratio
func ResolutionQuery(ratio float64) string {
	return fmt.Sprintf("only screen and (-webkit-min-device-pixel-ratio: %s), only screen and (min-resolution: %.3fdpi)",
		strconv.FormatFloat(ratio, 'f', -1, 64), ratio*96)
}

// Static is an Environment with fixed answers
type Static struct {
	DPR  float64
	WebP bool
}

func (s Static) HighResolution(ratio float64) bool { return s.DPR >= ratio }
func (s Static) SupportsWebP() bool { return s.WebP }

// HeaderEnvironment derives the environment of an HTTP client from its Accept
// header and DPR client hints.
func HeaderEnvironment(r *http.Request) Static {
	env := Static{DPR: 1}
	for _, header := range []string{"Sec-CH-DPR", "DPR"} {
		if v, err := strconv.ParseFloat(strings.TrimSpace(r.Header.Get(header)), 64); err == nil && v > 0 {
			env.DPR = v
			break
		}
	}
	for _, accept := range r.Header.Values("Accept") {
		if strings.Contains(accept, "image/webp") {
			env.WebP = true
		}
	}
	return env
}
