package providers

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// errStopSSE ends SSE consumption without surfacing an error.
var errStopSSE = errors.New("providers: stop sse")

// readSSE decodes a text/event-stream body and hands each event's data
// payload to onData. Multi-line data fields are joined with newlines, comment
// lines are skipped, and a "[DONE]" payload or an errStopSSE return from
// onData ends the stream cleanly.
func readSSE(body io.Reader, onData func([]byte) error) error {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var data strings.Builder
	dispatch := func() error {
		payload := strings.TrimSpace(data.String())
		data.Reset()
		switch payload {
		case "":
			return nil
		case "[DONE]":
			return errStopSSE
		}
		return onData([]byte(payload))
	}

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			// Blank line terminates the event.
			if err := dispatch(); err != nil {
				if errors.Is(err, errStopSSE) {
					return nil
				}
				return err
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			// Comment / keep-alive.
			continue
		}
		if field, ok := strings.CutPrefix(line, "data:"); ok {
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(field))
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("providers: sse scanner: %w", err)
	}
	if err := dispatch(); err != nil && !errors.Is(err, errStopSSE) {
		return err
	}
	return nil
}
