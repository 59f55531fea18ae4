package codec

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloads() map[string][]byte {
	rng := rand.New(rand.NewSource(9))
	random := make([]byte, 4096)
	rng.Read(random)
	return map[string][]byte{
		"empty":  nil,
		"small":  []byte(`{"kind":"task"}`),
		"json":   bytes.Repeat([]byte(`{"source":"reads.fq","sum":[40,40,40],"count":[1,1,1]}`), 200),
		"random": random,
	}
}

func TestCodecs_RoundTrip(t *testing.T) {
	for _, name := range Names() {
		typ, err := ParseType(name)
		require.NoError(t, err)
		assert.Equal(t, name, typ.String())

		c, err := CreateCodec(typ, "test")
		require.NoError(t, err)

		for pname, data := range payloads() {
			t.Run(name+"/"+pname, func(t *testing.T) {
				enc, err := c.Compress(data)
				if typ == LZ4 && pname == "random" && err != nil {
					t.Skip("lz4 rejects incompressible blocks")
				}
				require.NoError(t, err)
				dec, err := c.Decompress(enc)
				require.NoError(t, err)
				assert.Equal(t, len(data), len(dec))
				if len(data) > 0 {
					assert.Equal(t, data, dec)
				}
			})
		}
	}
}

func TestCompressionShrinksRepetitiveJSON(t *testing.T) {
	data := payloads()["json"]
	for _, typ := range []Type{Zstd, S2, LZ4} {
		c, err := GetCodec(typ)
		require.NoError(t, err)
		enc, err := c.Compress(data)
		require.NoError(t, err)
		assert.Less(t, len(enc), len(data)/4, typ.String())
	}
}

func TestParseType(t *testing.T) {
	typ, err := ParseType(" ZSTD ")
	require.NoError(t, err)
	assert.Equal(t, Zstd, typ)

	typ, err = ParseType("")
	require.NoError(t, err)
	assert.Equal(t, None, typ)

	_, err = ParseType("brotli")
	require.Error(t, err)

	_, err = CreateCodec(Type(42), "frame")
	require.ErrorContains(t, err, "invalid frame compression")
	_, err = GetCodec(Type(42))
	require.Error(t, err)
}

func TestCorruptInput(t *testing.T) {
	for _, typ := range []Type{Zstd, S2, LZ4} {
		c, _ := GetCodec(typ)
		_, err := c.Decompress([]byte("definitely not compressed"))
		assert.Error(t, err, typ.String())
	}
}
