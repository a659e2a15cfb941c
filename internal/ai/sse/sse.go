// Package sse reads the "data:" lines of a Server-Sent-Events stream.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// Done is the terminal payload some vendors send.
const Done = "[DONE]"

const (
	initialBuffer = 64 * 1024
	maxLine       = 1024 * 1024
)

// HandlerFunc receives the payload of one data line. Returning stop=true ends
// the scan without error.
type HandlerFunc func(data string) (stop bool, err error)

// Scan calls fn for every data line in r until EOF, fn stops, or fn fails.
// Event names, comments and blank lines are skipped.
func Scan(r io.Reader, fn HandlerFunc) error {
	return Lines(r, func(line string) (bool, error) {
		data, ok := Data(line)
		if !ok {
			return false, nil
		}
		return fn(data)
	})
}

// Lines calls fn for every raw line in r. Lines split across network reads
// are reassembled before fn sees them.
func Lines(r io.Reader, fn func(line string) (stop bool, err error)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialBuffer), maxLine)
	for scanner.Scan() {
		stop, err := fn(strings.TrimRight(scanner.Text(), "\r"))
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return scanner.Err()
}

// Data returns the payload of an SSE data line.
func Data(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(rest, " "), true
}
