package vendorhttp

import (
	"bufio"
	"bytes"
	"strings"
)

// SSEData returns the payloads of every "data:" line in an event-stream body,
// in order, stopping at the [DONE] sentinel. Comments, event names and blank
// lines are skipped.
//
// Expected framing:
//
//	data: {"choices":[...]}\n
//	\n
//	data: [DONE]\n
func SSEData(body []byte) []string {
	var out []string
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 64*1024), maxBodyBytes)
	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "[DONE]" {
			break
		}
		if payload != "" {
			out = append(out, payload)
		}
	}
	return out
}
