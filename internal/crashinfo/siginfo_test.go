//go:build linux

package crashinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslateSignal(t *testing.T) {
	tests := []struct {
		signum int32
		want   SignalName
	}{
		{4, SigILL},
		{6, SigABRT},
		{7, SigBUS},
		{8, SigFPE},
		{11, SigSEGV},
		{31, SigSYS},
		{0, SigUnknown},
		{-3, SigUnknown},
		{64, SigUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TranslateSignal(tt.signum))
	}
}

func TestTranslateSiCode(t *testing.T) {
	tests := []struct {
		name   string
		signum int32
		code   int32
		want   SiCode
	}{
		{"segv maperr", 11, 1, SegvMaperr},
		{"segv accerr", 11, 2, SegvAccerr},
		{"bus adraln", 7, 1, BusAdraln},
		{"ill illopc", 4, 1, IllIllopc},
		{"fpe intdiv", 8, 1, FpeIntdiv},
		{"sys seccomp", 31, 1, SysSeccomp},
		{"kernel", 11, 0x80, SiKernel},
		{"tkill", 11, -6, SiTkill},
		{"unknown sub-code", 11, 99, SiCodeUnknown},
		{"unknown signal", 64, 1, SiCodeUnknown},
		{"unavailable sentinel", 11, SiCodeUnavailable, SiCodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TranslateSiCode(tt.signum, tt.code))
		})
	}
}

// Signal-independent codes win over per-signal tables: si_code 0 on a
// SIGSEGV means a user-sent signal, not a mapping error.
func TestTranslateSiCodeIndependentFirst(t *testing.T) {
	assert.Equal(t, SiUser, TranslateSiCode(11, 0))
	assert.Equal(t, SiQueue, TranslateSiCode(7, -1))
}

// Translation is total: every combination yields a name, never a failure.
func TestTranslateTotality(t *testing.T) {
	for signum := int32(-2); signum <= 70; signum++ {
		name := TranslateSignal(signum)
		assert.NotEmpty(t, name)
		for code := int32(-10); code <= 10; code++ {
			assert.NotEmpty(t, TranslateSiCode(signum, code))
		}
	}
}

func TestNewSigInfo(t *testing.T) {
	si := NewSigInfo(11, 1, "0x0000000000000008")
	assert.Equal(t, int32(11), si.SigNum)
	assert.Equal(t, SigSEGV, si.SigName)
	assert.Equal(t, SegvMaperr, si.CodeName)
	assert.Equal(t, "0x0000000000000008", si.FaultAddress)
}
