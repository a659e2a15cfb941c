package sse_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiliankoe/fabricdash/internal/ai/sse"
)

func TestScan_DataLinesOnly(t *testing.T) {
	in := "event: message\n" +
		": keepalive\n" +
		"data: {\"a\":1}\n" +
		"\n" +
		"data:{\"b\":2}\r\n" +
		"id: 7\n"

	var got []string
	err := sse.Scan(strings.NewReader(in), func(data string) (bool, error) {
		got = append(got, data)
		return false, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{`{"a":1}`, `{"b":2}`}, got)
}

func TestScan_Stop(t *testing.T) {
	in := "data: one\ndata: [DONE]\ndata: two\n"

	var got []string
	err := sse.Scan(strings.NewReader(in), func(data string) (bool, error) {
		if data == sse.Done {
			return true, nil
		}
		got = append(got, data)
		return false, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, got)
}

func TestScan_HandlerError(t *testing.T) {
	boom := errors.New("boom")
	err := sse.Scan(strings.NewReader("data: x\ndata: y\n"), func(string) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestScan_LineSplitAcrossReads(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		_, _ = pw.Write([]byte("data: hel"))
		_, _ = pw.Write([]byte("lo\ndata: wor"))
		_, _ = pw.Write([]byte("ld\n"))
		_ = pw.Close()
	}()

	var got []string
	err := sse.Scan(pr, func(data string) (bool, error) {
		got = append(got, data)
		return false, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world"}, got)
}

func TestData(t *testing.T) {
	d, ok := sse.Data("data: x")
	assert.True(t, ok)
	assert.Equal(t, "x", d)

	d, ok = sse.Data("data:  two spaces")
	assert.True(t, ok)
	assert.Equal(t, " two spaces", d)

	_, ok = sse.Data("event: x")
	assert.False(t, ok)
}
