package receiver

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/DataDog/libdatadog/internal/crashinfo"
	"github.com/DataDog/libdatadog/internal/logging"
	"github.com/DataDog/libdatadog/internal/wire"
)

// maxLineSize bounds a single handoff line. Config and metadata are small;
// the largest lines are attached file contents.
const maxLineSize = 1 << 20

// HandoffConfig is the collector's view of where this report should go,
// carried in the CONFIG section. Values here win over the receiver's own
// environment: the parent knows best.
type HandoffConfig struct {
	AdditionalFiles []string `json:"additional_files,omitempty"`
	Endpoint        string   `json:"endpoint,omitempty"`
	ResolveFrames   string   `json:"resolve_frames"`
	TimeoutMS       int64    `json:"timeout_ms"`
}

// Report is the outcome of parsing one handoff stream.
type Report struct {
	Info   *crashinfo.CrashInfo
	Config HandoffConfig
	PID    int32
	// Complete is true only if the DONE marker arrived, meaning the
	// collector finished writing before the process died.
	Complete bool
}

type parseState int

const (
	stateWaiting parseState = iota
	stateInSection
	stateDone
)

// Parser reassembles a crash report from the line-delimited handoff
// stream. It is a single-use object.
type Parser struct {
	log     *logging.Logger
	builder *crashinfo.Builder

	state   parseState
	section wire.Section

	// readTimeout bounds the whole read once the first line arrives. The
	// collector's own timeout_ms takes over when the CONFIG section lands.
	readTimeout       time.Duration
	cfgTimeoutApplied bool

	cfg HandoffConfig
	pid int32

	// FILE sections carry the path on their first line.
	filePath  string
	fileLines []string

	stackFrames int

	// RUNTIME_STACK frames accumulate into their own thread.
	runtimeStack *crashinfo.StackTrace

	sawAnything bool
}

// NewParser creates a parser that logs recoverable stream problems.
func NewParser(log *logging.Logger) *Parser {
	if log == nil {
		log = logging.NewNop()
	}
	return &Parser{
		log:     log,
		builder: crashinfo.NewBuilder(),
	}
}

// WithReadTimeout bounds how long Parse waits once the first line has
// arrived. Zero disables the deadline.
func (p *Parser) WithReadTimeout(d time.Duration) *Parser {
	p.readTimeout = d
	return p
}

// Parse consumes the stream until DONE, EOF, or the read deadline expires,
// and returns the rebuilt report. EOF before DONE means the collector died
// mid-write; deadline expiry means it wedged. Either way, whatever sections
// completed are still in the report, which is marked incomplete.
func (p *Parser) Parse(r io.Reader) (*Report, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	// Reads happen in their own goroutine so the deadline can interrupt a
	// blocked read. A wedged reader keeps the goroutine parked, which is
	// fine for a process that exits right after its one report.
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		scanErr <- scanner.Err()
	}()

	var (
		timer    *time.Timer
		deadline <-chan time.Time
		timedOut bool
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

read:
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return nil, fmt.Errorf("reading handoff stream: %w", err)
				}
				break read
			}
			// The clock starts at the first received line.
			if timer == nil && p.readTimeout > 0 {
				timer = time.NewTimer(p.readTimeout)
				deadline = timer.C
			}
			if err := p.consumeLine(line); err != nil {
				return nil, err
			}
			if !p.cfgTimeoutApplied && p.cfg.TimeoutMS > 0 && timer != nil {
				timer.Reset(time.Duration(p.cfg.TimeoutMS) * time.Millisecond)
				p.cfgTimeoutApplied = true
			}
			if p.state == stateDone {
				break read
			}
		case <-deadline:
			timedOut = true
			break read
		}
	}
	if !p.sawAnything {
		return nil, fmt.Errorf("handoff stream was empty")
	}

	complete := p.state == stateDone
	if timedOut {
		p.log.Warn("read deadline expired, salvaging what arrived",
			"last_section", string(p.section))
	} else if !complete {
		p.log.Warn("handoff stream truncated before DONE marker",
			"last_section", string(p.section))
	}
	info, err := p.builder.Build(!complete)
	if err != nil {
		return nil, fmt.Errorf("assembling crash report: %w", err)
	}
	return &Report{
		Info:     info,
		Config:   p.cfg,
		PID:      p.pid,
		Complete: complete,
	}, nil
}

func (p *Parser) consumeLine(line string) error {
	if line == "" {
		return nil
	}
	switch p.state {
	case stateWaiting:
		return p.consumeMarker(line)
	case stateInSection:
		if line == wire.End(p.section) {
			return p.closeSection()
		}
		if err := p.consumePayload(line); err != nil {
			// A garbled payload line loses that line, not the report.
			p.log.Warn("skipping malformed handoff line",
				"section", string(p.section), "error", err.Error())
		}
		return nil
	default:
		return nil
	}
}

func (p *Parser) consumeMarker(line string) error {
	if line == wire.Done {
		p.sawAnything = true
		p.state = stateDone
		return nil
	}
	section, ok := beginSection(line)
	if !ok {
		// Not ours. The monitored process may share the pipe with other
		// chatter; ignore it.
		p.log.Debug("ignoring line outside any section", "line", line)
		return nil
	}
	p.sawAnything = true
	p.state = stateInSection
	p.section = section
	p.filePath = ""
	p.fileLines = nil
	if section == wire.SectionRuntimeStack {
		p.runtimeStack = crashinfo.NewStackTrace()
	}
	return nil
}

func beginSection(line string) (wire.Section, bool) {
	for _, s := range wire.Sections {
		if line == wire.Begin(s) {
			return s, true
		}
	}
	return "", false
}

func (p *Parser) closeSection() error {
	section := p.section
	p.state = stateWaiting
	p.section = ""

	switch section {
	case wire.SectionStackTrace:
		// An empty section means the collector had no native stack; there
		// is nothing to seal.
		if p.stackFrames == 0 {
			return nil
		}
		return p.builder.WithStackComplete()
	case wire.SectionRuntimeStack:
		if p.runtimeStack != nil && len(p.runtimeStack.Frames) > 0 {
			p.runtimeStack.SetComplete()
			if err := p.builder.WithThread(crashinfo.ThreadData{
				Name:  "runtime",
				Stack: p.runtimeStack,
			}); err != nil {
				return err
			}
		}
		p.runtimeStack = nil
	case wire.SectionFile:
		if p.filePath != "" {
			return p.builder.WithFileContents(p.filePath, p.fileLines)
		}
	}
	return nil
}

func (p *Parser) consumePayload(line string) error {
	switch p.section {
	case wire.SectionConfig:
		return json.Unmarshal([]byte(line), &p.cfg)
	case wire.SectionMetadata:
		var md crashinfo.Metadata
		if err := json.Unmarshal([]byte(line), &md); err != nil {
			return err
		}
		return p.builder.WithMetadata(md)
	case wire.SectionErrorKind:
		var kind string
		if err := json.Unmarshal([]byte(line), &kind); err != nil {
			return err
		}
		return p.builder.WithErrorKind(crashinfo.ErrorKind(kind))
	case wire.SectionMessage:
		var msg string
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return err
		}
		return p.builder.WithMessage(msg)
	case wire.SectionSigInfo:
		return p.consumeSigInfo(line)
	case wire.SectionProcInfo:
		var pi crashinfo.ProcInfo
		if err := json.Unmarshal([]byte(line), &pi); err != nil {
			return err
		}
		p.pid = pi.PID
		return p.builder.WithProcInfo(pi)
	case wire.SectionCounters:
		return p.consumeCounter(line)
	case wire.SectionTags:
		return p.consumeTag(line)
	case wire.SectionSpanIDs:
		return p.consumeID(line, p.builder.WithSpanID)
	case wire.SectionTraceIDs:
		return p.consumeID(line, p.builder.WithTraceID)
	case wire.SectionStackTrace:
		var frame crashinfo.StackFrame
		if err := json.Unmarshal([]byte(line), &frame); err != nil {
			return err
		}
		if err := p.builder.WithStackFrame(frame); err != nil {
			return err
		}
		p.stackFrames++
		return nil
	case wire.SectionRuntimeStack:
		var frame crashinfo.StackFrame
		if err := json.Unmarshal([]byte(line), &frame); err != nil {
			return err
		}
		return p.runtimeStack.PushFrame(frame)
	case wire.SectionFile:
		return p.consumeFileLine(line)
	default:
		return nil
	}
}

// rawSigInfo is the fault path's minimal signal payload; translation to
// portable names happens here where allocation is free.
type rawSigInfo struct {
	Signo int32  `json:"si_signo"`
	Code  int32  `json:"si_code"`
	Addr  string `json:"si_addr"`
}

func (p *Parser) consumeSigInfo(line string) error {
	var raw rawSigInfo
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return err
	}
	return p.builder.WithSigInfo(crashinfo.NewSigInfo(raw.Signo, raw.Code, raw.Addr))
}

func (p *Parser) consumeCounter(line string) error {
	var entry map[string]int64
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return err
	}
	for name, value := range entry {
		if err := p.builder.WithCounter(name, value); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) consumeTag(line string) error {
	var tag string
	if err := json.Unmarshal([]byte(line), &tag); err != nil {
		return err
	}
	key, value, found := strings.Cut(tag, ":")
	if !found {
		return fmt.Errorf("tag %q has no separator", tag)
	}
	return p.builder.WithTag(key, value)
}

func (p *Parser) consumeID(line string, add func(crashinfo.Span) error) error {
	var id string
	if err := json.Unmarshal([]byte(line), &id); err != nil {
		return err
	}
	return add(crashinfo.Span{ID: id})
}

func (p *Parser) consumeFileLine(line string) error {
	var s string
	if err := json.Unmarshal([]byte(line), &s); err != nil {
		return err
	}
	if p.filePath == "" {
		p.filePath = s
		return nil
	}
	p.fileLines = append(p.fileLines, s)
	return nil
}
