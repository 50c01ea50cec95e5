package api

import (
	"bufio"
	"io"
	"strings"
)

// scanFrames reads server-sent-event style frames from r and invokes emit
// with each frame's data payload, strictly in arrival order. A frame is one
// or more "data:" lines terminated by a blank line. Comment lines (":") and
// other SSE fields are ignored. Returns the first emit error, or the read
// error that ended the stream (io.EOF is a clean end and returns nil).
func scanFrames(r io.Reader, emit func(data []byte) error) error {
	scanner := bufio.NewScanner(r)
	// Answer fragments can make individual frames large
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var data []string
	flush := func() error {
		if len(data) == 0 {
			return nil
		}
		payload := strings.Join(data, "\n")
		data = data[:0]
		return emit([]byte(payload))
	}

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if err := flush(); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
		// other SSE fields (event:, id:, retry:) are not used by the service
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	// stream ended without a trailing blank line
	return flush()
}
