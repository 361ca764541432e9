package agent

import "bytes"

// LineParser splits an unbounded byte stream into newline-delimited records,
// carrying partial lines over between reads. The agent CLIs write one JSON
// object per line but the pipe hands us arbitrary chunks, so the final
// fragment of every chunk is retained until its newline arrives.
type LineParser struct {
	buf []byte
}

// Feed appends a chunk and returns every completed line, in order, without
// trailing newlines. The last unterminated fragment stays buffered.
func (p *LineParser) Feed(chunk []byte) [][]byte {
	p.buf = append(p.buf, chunk...)

	var lines [][]byte
	for {
		idx := bytes.IndexByte(p.buf, '\n')
		if idx < 0 {
			break
		}
		line := make([]byte, idx)
		copy(line, p.buf[:idx])
		p.buf = p.buf[idx+1:]
		lines = append(lines, bytes.TrimRight(line, "\r"))
	}
	return lines
}

// Flush returns whatever is still buffered. Called once at process close so
// a final line without a trailing newline still gets its parse attempt.
func (p *LineParser) Flush() []byte {
	if len(p.buf) == 0 {
		return nil
	}
	out := p.buf
	p.buf = nil
	return bytes.TrimRight(out, "\r\n")
}
