package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const packedSample = `eval(function(p,a,c,k,e,d){e=function(c){return c};if(!''.replace(/^/,String)){while(c--){d[c]=k[c]||c}k=[function(e){return d[e]}];e=function(){return'\\w+'};c=1};while(c--){if(k[c]){p=p.replace(new RegExp('\\b'+e(c)+'\\b','g'),k[c])}}return p}('0 1="2";',3,3,'var|src|https://cdn.example/video.mp4'.split('|'),0,{}))`

func TestIsPacked(t *testing.T) {
	assert.True(t, IsPacked(packedSample))
	assert.False(t, IsPacked(`var src = "https://cdn.example/video.mp4";`))
	assert.False(t, IsPacked(""))
}

func TestUnpack(t *testing.T) {
	out, err := Unpack(packedSample)
	require.NoError(t, err)
	assert.Equal(t, `var src="https://cdn.example/video.mp4";`, out)
}

func TestUnpack_NotPacked(t *testing.T) {
	_, err := Unpack("console.log('hello')")
	assert.Error(t, err)
}

func TestUnpack_SubstitutesWholeTokensOnly(t *testing.T) {
	// Token "1" must not rewrite the "1" inside "10".
	sample := `eval(function(p,a,c,k,e,d){return p}('0.1(10);',36,2,'console|log'.split('|'),0,{}))`

	out, err := Unpack(sample)
	require.NoError(t, err)
	assert.Equal(t, "console.log(10);", out)
}
