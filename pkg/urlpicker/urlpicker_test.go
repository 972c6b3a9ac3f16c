package urlpicker

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/appropriate-images/pkg/types"
)

var imageConfig = types.ImageConfig{
	"bear": {Basename: "bear.png", Sizes: []types.SizeSpec{{Width: 300}, {Width: 600}}},
	"montaraz": {Basename: "montaraz.jpg", Sizes: []types.SizeSpec{
		{Width: 300, Height: 500},
		{Width: 1200, Directive: types.Named("north")},
		{Width: 200, Height: 200, Directive: types.Named("southeast")},
		{Width: 210, Height: 210, Directive: types.Named("northwest")},
	}},
	"osprey": {Basename: "osprey.jpg", Sizes: []types.SizeSpec{{Width: 600}, {Width: 300, Height: 300}}},
	"walrus": {Basename: "walrus.png", Sizes: []types.SizeSpec{{Width: 400}}},
}

// countingEnv records how often each question reaches the environment
type countingEnv struct {
	hiRes     bool
	webp      bool
	hiResCall map[float64]int
	webpCalls int
}

func newCountingEnv() *countingEnv {
	return &countingEnv{hiResCall: make(map[float64]int)}
}

func (e *countingEnv) HighResolution(ratio float64) bool {
	e.hiResCall[ratio]++
	return e.hiRes
}

func (e *countingEnv) SupportsWebP() bool {
	e.webpCalls++
	return e.webp
}

func TestURLSelection(t *testing.T) {
	p := New(Static{DPR: 1})
	cases := []struct {
		name string
		req  Request
		want string
	}{
		{"beneath narrowest", Request{ImageID: "bear", Width: 280}, "bear-300.png"},
		{"between", Request{ImageID: "bear", Width: 340}, "bear-600.png"},
		{"above widest", Request{ImageID: "bear", Width: 800}, "bear-600.png"},
		{"exact width", Request{ImageID: "bear", Width: 300}, "bear-300.png"},
		{"unlimited width", Request{ImageID: "bear"}, "bear-600.png"},
		{"reorders sizes", Request{ImageID: "osprey", Width: 280}, "osprey-300x300.jpg"},
		{"appends height", Request{ImageID: "montaraz", Width: 180}, "montaraz-200x200.jpg"},
		{"directory", Request{ImageID: "osprey", Width: 400, ImageDirectory: "foo/bar"}, "foo/bar/osprey-600.jpg"},
		{"directory with slash", Request{ImageID: "osprey", Width: 400, ImageDirectory: "foo/bar/"}, "foo/bar/osprey-600.jpg"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.req.Config = imageConfig
			got, err := p.URL(tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestURLDoesNotReorderConfig(t *testing.T) {
	_, err := New(Static{}).URL(Request{ImageID: "osprey", Width: 10, Config: imageConfig})
	require.NoError(t, err)
	assert.Equal(t, 600, imageConfig["osprey"].Sizes[0].Width)
}

func TestURLUsesWebPWhenSupported(t *testing.T) {
	got, err := New(Static{WebP: true}).URL(Request{ImageID: "montaraz", Width: 180, Config: imageConfig})
	require.NoError(t, err)
	assert.Equal(t, "montaraz-200x200.webp", got)
}

func TestURLAccountsForResolution(t *testing.T) {
	got, err := New(Static{DPR: 2}).URL(Request{ImageID: "osprey", Width: 280, Config: imageConfig})
	require.NoError(t, err)
	assert.Equal(t, "osprey-600.jpg", got)

	// a custom ratio above the display's keeps the normal width
	got, err = New(Static{DPR: 2}).URL(Request{ImageID: "osprey", Width: 280, HiResRatio: 3, Config: imageConfig})
	require.NoError(t, err)
	assert.Equal(t, "osprey-300x300.jpg", got)
}

func TestURLErrors(t *testing.T) {
	p := New(Static{})
	_, err := p.URL(Request{Config: imageConfig})
	assert.EqualError(t, err, "imageId is required")

	_, err = p.URL(Request{ImageID: "bear"})
	assert.EqualError(t, err, "imageConfig is required")

	_, err = p.URL(Request{ImageID: "heron", Config: imageConfig})
	assert.EqualError(t, err, "heron is not a valid image id")
}

func TestPickerMemoizesAndResets(t *testing.T) {
	env := newCountingEnv()
	p := New(env)
	req := Request{ImageID: "bear", Width: 280, Config: imageConfig}

	for i := 0; i < 3; i++ {
		_, err := p.URL(req)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, env.hiResCall[DefaultHiResRatio])
	assert.Equal(t, 1, env.webpCalls)

	req.HiResRatio = 2
	_, err := p.URL(req)
	require.NoError(t, err)
	assert.Equal(t, 1, env.hiResCall[2])

	env.hiRes = true
	p.Reset()
	got, err := p.URL(Request{ImageID: "bear", Width: 280, Config: imageConfig})
	require.NoError(t, err)
	assert.Equal(t, "bear-600.png", got)
	assert.Equal(t, 2, env.hiResCall[DefaultHiResRatio])
	assert.Equal(t, 2, env.webpCalls)
}

func TestResolutionQuery(t *testing.T) {
	assert.Equal(t,
		"only screen and (-webkit-min-device-pixel-ratio: 1.3), only screen and (min-resolution: 124.800dpi)",
		ResolutionQuery(1.3))
	assert.Equal(t,
		"only screen and (-webkit-min-device-pixel-ratio: 2), only screen and (min-resolution: 192.000dpi)",
		ResolutionQuery(2))
}

func TestHeaderEnvironment(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	env := HeaderEnvironment(r)
	assert.False(t, env.SupportsWebP())
	assert.False(t, env.HighResolution(DefaultHiResRatio))

	r.Header.Set("Accept", "image/avif,image/webp,*/*")
	r.Header.Set("DPR", "2")
	env = HeaderEnvironment(r)
	assert.True(t, env.SupportsWebP())
	assert.True(t, env.HighResolution(DefaultHiResRatio))

	r.Header.Set("Sec-CH-DPR", "1")
	assert.False(t, HeaderEnvironment(r).HighResolution(DefaultHiResRatio))
}
