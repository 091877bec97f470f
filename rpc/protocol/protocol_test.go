package protocol

import (
	"encoding/binary"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/sKV/lib/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQuery() []byte {
	return EncodeQuery("SET",
		value.String("key"),
		value.List(value.Int32(-7), value.Binary([]byte{0, 1, 2}), value.Null()),
	)
}

// feedChunks feeds data split at the given cut points and collects all frames
func feedChunks(t *testing.T, p *Parser, data []byte, cuts []int) []Frame {
	t.Helper()
	var frames []Frame
	prev := 0
	for _, c := range append(cuts, len(data)) {
		p.Feed(data[prev:c])
		prev = c
		for {
			f, err := p.Next()
			if errors.Is(err, ErrIncomplete) {
				break
			}
			require.NoError(t, err)
			frames = append(frames, f)
		}
	}
	return frames
}

func requireSameQuery(t *testing.T, want Query, f Frame) {
	t.Helper()
	got, err := ParseQuery(f)
	require.NoError(t, err)
	assert.Equal(t, want.Action, got.Action)
	require.Len(t, got.Args, len(want.Args))
	for i := range want.Args {
		assert.True(t, want.Args[i].Equal(got.Args[i]), "arg %d: want %s got %s", i, want.Args[i], got.Args[i])
	}
}

// --------------------------------------------------------------------------
// Incremental parsing
// --------------------------------------------------------------------------

// TestPartialInput feeds the same query in one chunk, split in two at every
// position and byte by byte; all must decode to the same query.
func TestPartialInput(t *testing.T) {
	data := testQuery()
	whole := NewParser(MarkerQuery, 0)
	frames := feedChunks(t, whole, data, nil)
	require.Len(t, frames, 1)
	want, err := ParseQuery(frames[0])
	require.NoError(t, err)

	t.Run("two chunks", func(t *testing.T) {
		for cut := 1; cut < len(data); cut++ {
			frames := feedChunks(t, NewParser(MarkerQuery, 0), data, []int{cut})
			require.Len(t, frames, 1, "cut at %d", cut)
			requireSameQuery(t, want, frames[0])
		}
	})

	t.Run("byte by byte", func(t *testing.T) {
		cuts := make([]int, 0, len(data))
		for i := 1; i < len(data); i++ {
			cuts = append(cuts, i)
		}
		p := NewParser(MarkerQuery, 0)
		frames := feedChunks(t, p, data, cuts)
		require.Len(t, frames, 1)
		requireSameQuery(t, want, frames[0])
		assert.Equal(t, StateAwaitingMetaframe, p.State())
	})

	t.Run("random chunks", func(t *testing.T) {
		rng := rand.New(rand.NewSource(1))
		for round := 0; round < 50; round++ {
			var cuts []int
			for i := 1; i < len(data); i++ {
				if rng.Intn(4) == 0 {
					cuts = append(cuts, i)
				}
			}
			frames := feedChunks(t, NewParser(MarkerQuery, 0), data, cuts)
			require.Len(t, frames, 1)
			requireSameQuery(t, want, frames[0])
		}
	})
}

func TestStates(t *testing.T) {
	data := EncodeQuery("GET", value.String("k"))
	p := NewParser(MarkerQuery, 0)
	assert.Equal(t, StateAwaitingMetaframe, p.State())
	assert.Equal(t, HeaderSize, p.Remaining())

	p.Feed(data[:HeaderSize])
	_, err := p.Next()
	require.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, 8, p.Remaining(), "two size fields")

	p.Feed(data[HeaderSize : HeaderSize+8])
	_, err = p.Next()
	require.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, StateAwaitingDataframe, p.State())
	assert.Equal(t, len(data)-HeaderSize-8, p.Remaining())

	p.Feed(data[HeaderSize+8:])
	assert.Equal(t, StateComplete, p.State())
	_, err = p.Next()
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingMetaframe, p.State())
	assert.ErrorIs(t, p.Finish(), io.EOF)
}

// TestPipelined checks that several frames in one read are all returned in order
func TestPipelined(t *testing.T) {
	var data []byte
	data = AppendQuery(data, "SET", value.String("a"), value.String("1"))
	data = AppendQuery(data, "GET", value.String("a"))
	data = AppendQuery(data, "DEL", value.String("a"))

	frames := feedChunks(t, NewParser(MarkerQuery, 0), data, nil)
	require.Len(t, frames, 3)
	for i, action := range []string{"SET", "GET", "DEL"} {
		q, err := ParseQuery(frames[i])
		require.NoError(t, err)
		assert.Equal(t, action, q.Action)
	}
}

// --------------------------------------------------------------------------
// Failure modes
// --------------------------------------------------------------------------

func TestMalformedHeader(t *testing.T) {
	valid := testQuery()
	mutate := func(fn func(b []byte)) []byte {
		b := append([]byte(nil), valid...)
		fn(b)
		return b
	}

	cases := map[string][]byte{
		"bad marker":     mutate(func(b []byte) { b[0] = '+' }),
		"bad version":    mutate(func(b []byte) { b[1] = 9 }),
		"response kind":  mutate(func(b []byte) { b[2] = byte(KindError) }),
		"zero elements":  mutate(func(b []byte) { binary.BigEndian.PutUint32(b[3:], 0) }),
		"huge count":     mutate(func(b []byte) { binary.BigEndian.PutUint32(b[3:], MaxElements+1) }),
		"zero size":      mutate(func(b []byte) { binary.BigEndian.PutUint32(b[HeaderSize:], 0) }),
		"size over max":  mutate(func(b []byte) { binary.BigEndian.PutUint32(b[HeaderSize:], 1<<30) }),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			p := NewParser(MarkerQuery, 1024)
			p.Feed(data)
			_, err := p.Next()
			assert.ErrorIs(t, err, ErrMalformedHeader)
		})
	}

	t.Run("max query size", func(t *testing.T) {
		big := EncodeQuery("SET", value.String("k"), value.Binary(make([]byte, 2048)))
		p := NewParser(MarkerQuery, 1024)
		// only the metaframe is needed to reject the query
		p.Feed(big[:HeaderSize+12])
		_, err := p.Next()
		assert.ErrorIs(t, err, ErrMalformedHeader)
	})
}

func TestUnexpectedEOF(t *testing.T) {
	data := testQuery()
	for _, cut := range []int{1, HeaderSize, len(data) - 1} {
		p := NewParser(MarkerQuery, 0)
		p.Feed(data[:cut])
		_, err := p.Next()
		require.ErrorIs(t, err, ErrIncomplete)
		assert.ErrorIs(t, p.Finish(), ErrUnexpectedEOF, "cut at %d", cut)
	}
}

// TestBadElementKeepsStream checks that an undecodable element only drops its frame
func TestBadElementKeepsStream(t *testing.T) {
	bad := EncodeQuery("SET", value.String("k"))
	// corrupt the tag of the key element
	bad[len(bad)-value.String("k").SizeBytes()] = 0xEE
	data := append(bad, EncodeQuery("GET", value.String("k"))...)

	p := NewParser(MarkerQuery, 0)
	p.Feed(data)
	_, err := p.Next()
	assert.ErrorIs(t, err, value.ErrMalformedValue)

	f, err := p.Next()
	require.NoError(t, err)
	q, err := ParseQuery(f)
	require.NoError(t, err)
	assert.Equal(t, "GET", q.Action)
}

func TestParseQueryRejectsNonStringAction(t *testing.T) {
	data := AppendFrame(nil, MarkerQuery, KindValue, []value.Value{value.Int8(1)})
	p := NewParser(MarkerQuery, 0)
	p.Feed(data)
	f, err := p.Next()
	require.NoError(t, err)
	_, err = ParseQuery(f)
	assert.ErrorIs(t, err, ErrMalformedQuery)
}

// --------------------------------------------------------------------------
// Responses
// --------------------------------------------------------------------------

func TestResponseRoundTrip(t *testing.T) {
	responses := map[string]Response{
		"value":      Single(value.String("1")),
		"null":       Single(value.Null()),
		"list":       ListOf([]value.Value{value.String("a"), value.Uint64(2)}),
		"empty list": ListOf(nil),
		"error":      Errorf(CodeNil, "key %q not found", "a"),
	}
	for name, r := range responses {
		t.Run(name, func(t *testing.T) {
			p := NewParser(MarkerResponse, 0)
			p.Feed(r.Encode())
			f, err := p.Next()
			require.NoError(t, err)
			got, err := ParseResponse(f)
			require.NoError(t, err)

			assert.Equal(t, r.Kind, got.Kind)
			assert.Equal(t, r.Code, got.Code)
			assert.Equal(t, r.Msg, got.Msg)
			assert.True(t, value.List(r.Values...).Equal(value.List(got.Values...)))
		})
	}
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "Nil", CodeNil.String())
	assert.Equal(t, "BadContainerName", CodeBadContainerName.String())
	assert.Equal(t, "Code(999)", Code(999).String())
}
