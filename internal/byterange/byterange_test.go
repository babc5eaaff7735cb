package byterange

import (
	"testing"

	"github.com/jmylchreest/hlsarchiver/internal/hlsplaylist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	r, err := Parse("1000@500")
	require.NoError(t, err)
	assert.Equal(t, ByteRange{Length: 1000, Offset: 500}, r)
	assert.Equal(t, "1000@500", r.String())
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse("1000")
	assert.Error(t, err)
}

func TestFromRawChain(t *testing.T) {
	offset := uint64(500)
	a, cursor := FromRaw(&hlsplaylist.ByteRangeRaw{Length: 1000, Offset: &offset}, 0)
	assert.Equal(t, ByteRange{Length: 1000, Offset: 500}, a)
	assert.Equal(t, uint64(1500), cursor)

	b, cursor2 := FromRaw(&hlsplaylist.ByteRangeRaw{Length: 800}, cursor)
	assert.Equal(t, ByteRange{Length: 800, Offset: 1500}, b)
	assert.Equal(t, uint64(2300), cursor2)
}

func TestEndInclusive(t *testing.T) {
	r := ByteRange{Length: 1000, Offset: 500}
	assert.Equal(t, uint64(1499), r.End())
}

func TestToRawRoundTrip(t *testing.T) {
	r := ByteRange{Length: 1000, Offset: 500}
	raw := r.ToRaw()
	require.NotNil(t, raw.Offset)
	assert.Equal(t, uint64(500), *raw.Offset)
	assert.Equal(t, uint64(1000), raw.Length)
}
