package shaper

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/boxesandglue/textshape/ot"
)

// ExternalShaper drives a long-lived external shaping process over a
// line-oriented wire protocol: one request per codepoint in the buffer,
// "codepoint TAB script TAB language TAB direction" written to its stdin,
// answered on the matching stdout line by a whitespace-separated list of
// decimal glyph IDs (more than one for a codepoint that decomposes).
// cmd/eastasianspacing starts one process per input path, inside the pool
// worker handling that path, each with its own private pipe pair; a worker
// that handles several paths starts a new process for each of them.
//
// Because the protocol shapes one codepoint at a time, an external shaper
// cannot see cross-glyph context the way ot.Shaper's buffer-wide GPOS pass
// does; FeatureTester always verifies against the in-process shaper
// directly for that reason, and ExternalShaper is only exercised through
// GlyphSetResolver's single-codepoint resolution.
type ExternalShaper struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

// NewExternalShaper starts cmdline (a program path optionally followed by
// whitespace-separated arguments, as found in the SHAPER environment
// variable) as a child process and wires up its stdin/stdout for the wire
// protocol above.
func NewExternalShaper(cmdline string) (*ExternalShaper, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return nil, fmt.Errorf("shaper: empty command")
	}
	cmd := exec.Command(fields[0], fields[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &ExternalShaper{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}, nil
}

// Close closes the process's stdin and waits for it to exit.
func (e *ExternalShaper) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stdin.Close()
	return e.cmd.Wait()
}

// Shape sends one wire-protocol line per codepoint in buf and rewrites
// buf.Info with whatever glyph IDs come back, preserving buf's length when
// the external shaper doesn't decompose (the common case for this tool's
// single-codepoint glyph resolution).
func (e *ExternalShaper) Shape(buf *ot.Buffer, features []ot.Feature) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	direction := directionString(buf.Direction)
	var newInfo []ot.GlyphInfo
	for i := range buf.Info {
		cp := buf.Info[i].Codepoint
		line := fmt.Sprintf("%d\t%s\t%s\t%s\n", cp, buf.Script.String(), buf.Language.String(), direction)
		if _, err := io.WriteString(e.stdin, line); err != nil {
			return fmt.Errorf("shaper: write request: %w", err)
		}
		resp, err := e.stdout.ReadString('\n')
		if err != nil {
			return fmt.Errorf("shaper: read response: %w", err)
		}
		gids, err := parseGlyphIDs(resp)
		if err != nil {
			return err
		}
		for _, gid := range gids {
			info := buf.Info[i]
			info.GlyphID = gid
			newInfo = append(newInfo, info)
		}
	}

	buf.Info = newInfo
	buf.Pos = make([]ot.GlyphPos, len(newInfo))
	return nil
}

func parseGlyphIDs(line string) ([]ot.GlyphID, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("shaper: empty response line")
	}
	gids := make([]ot.GlyphID, len(fields))
	for i, f := range fields {
		n, err := strconv.ParseUint(f, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("shaper: invalid glyph id %q: %w", f, err)
		}
		gids[i] = ot.GlyphID(n)
	}
	return gids, nil
}

func directionString(d ot.Direction) string {
	switch d {
	case ot.DirectionRTL:
		return "rtl"
	case ot.DirectionTTB:
		return "ttb"
	case ot.DirectionBTT:
		return "btt"
	default:
		return "ltr"
	}
}
