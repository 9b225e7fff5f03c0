package crashinfo

import "errors"

// FormatString versions the frame layout so receivers can evolve
// independently of collectors.
const FormatString = "CrashTracker Stacktrace 1.0"

// ErrStackComplete is returned when appending to a sealed stack trace.
var ErrStackComplete = errors.New("stack trace already marked complete")

// BuildIDType identifies the flavor of a module's build identifier.
type BuildIDType string

const (
	BuildIDGNU  BuildIDType = "GNU"
	BuildIDGo   BuildIDType = "GO"
	BuildIDPDB  BuildIDType = "PDB"
	BuildIDSHA1 BuildIDType = "SHA1"
)

// FileType identifies the on-disk image format of a frame's module.
type FileType string

const (
	FileTypeELF FileType = "ELF"
	FileTypePE  FileType = "PE"
	FileTypeAPK FileType = "APK"
)

// StackFrame is one frame of a stack trace. Raw fields (addresses, module
// identity) are captured at fault time; debug fields (function, file, line)
// are filled in by whichever tier of symbol resolution is configured.
// Resolution never discards the raw fields.
type StackFrame struct {
	// Absolute addresses, formatted 0x-prefixed hex.
	IP            string `json:"ip,omitempty"`
	SP            string `json:"sp,omitempty"`
	ModuleBase    string `json:"module_base_address,omitempty"`
	SymbolAddress string `json:"symbol_address,omitempty"`

	// Module-relative identity.
	BuildID         string      `json:"build_id,omitempty"`
	BuildIDType     BuildIDType `json:"build_id_type,omitempty"`
	FileType        FileType    `json:"file_type,omitempty"`
	Path            string      `json:"path,omitempty"`
	RelativeAddress string      `json:"relative_address,omitempty"`

	// Debug info.
	Function string `json:"function,omitempty"`
	File     string `json:"file,omitempty"`
	Line     uint32 `json:"line,omitempty"`
	Column   uint32 `json:"column,omitempty"`

	Comments []string `json:"comments,omitempty"`
}

// IsResolved reports whether symbol resolution produced a function name.
func (f *StackFrame) IsResolved() bool {
	return f.Function != ""
}

// StackTrace is an ordered sequence of frames. Frames may only be appended
// while the trace is incomplete; SetComplete seals it.
type StackTrace struct {
	Format     string       `json:"format"`
	Frames     []StackFrame `json:"frames"`
	Incomplete bool         `json:"incomplete"`
}

// NewStackTrace returns an empty, incomplete trace ready for appending.
func NewStackTrace() *StackTrace {
	return &StackTrace{Format: FormatString, Frames: []StackFrame{}, Incomplete: true}
}

// MissingStackTrace marks a thread whose stack could not be collected.
func MissingStackTrace() *StackTrace {
	return NewStackTrace()
}

// StackTraceFromFrames builds a trace in one shot.
func StackTraceFromFrames(frames []StackFrame, incomplete bool) *StackTrace {
	return &StackTrace{Format: FormatString, Frames: frames, Incomplete: incomplete}
}

// PushFrame appends a frame. It fails once the trace has been sealed:
// a complete trace is a promise to the receiver that no frames are missing.
func (s *StackTrace) PushFrame(frame StackFrame) error {
	if !s.Incomplete {
		return ErrStackComplete
	}
	s.Frames = append(s.Frames, frame)
	return nil
}

// SetComplete seals the trace.
func (s *StackTrace) SetComplete() {
	s.Incomplete = false
}
