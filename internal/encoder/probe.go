package encoder

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
)

// capabilities is what the local ffmpeg build can produce.
type capabilities struct {
	encoders map[string]bool
	muxers   map[string]bool
}

// prober lists ffmpeg encoders and muxers and caches the first successful
// listing. Failures are not cached, so a transient error is retried on the
// next call.
type prober struct {
	path    string
	command CommandFunc

	mu   sync.Mutex
	caps *capabilities
}

func (p *prober) get(ctx context.Context) (capabilities, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.caps != nil {
		return *p.caps, nil
	}
	encOut, err := p.run(ctx, "-encoders")
	if err != nil {
		return capabilities{}, err
	}
	muxOut, err := p.run(ctx, "-muxers")
	if err != nil {
		return capabilities{}, err
	}
	p.caps = &capabilities{
		encoders: parseListing(encOut),
		muxers:   parseListing(muxOut),
	}
	return *p.caps, nil
}

func (p *prober) run(ctx context.Context, flag string) ([]byte, error) {
	cmd := p.command(ctx, p.path, "-hide_banner", flag)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s %s: %w: %s", p.path, flag, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// parseListing reads the table printed by `ffmpeg -encoders` or
// `ffmpeg -muxers`. Entries follow a separator line made only of dashes; each
// entry is a flag column, a name (comma-separated aliases for muxers) and a
// description.
func parseListing(out []byte) map[string]bool {
	names := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(out))
	inTable := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !inTable {
			inTable = strings.Trim(line, "-") == ""
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		for _, n := range strings.Split(fields[1], ",") {
			names[n] = true
		}
	}
	return names
}

// resolve picks the first encoder of t the local build provides.
func (c capabilities) resolve(t target) (string, bool) {
	if !c.muxers[t.muxer] {
		return "", false
	}
	for _, e := range t.encoders {
		if c.encoders[e] {
			return e, true
		}
	}
	return "", false
}
