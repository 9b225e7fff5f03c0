package crashinfo

// SigInfo captures why the fatal signal fired, in both raw numeric and
// portable symbolic form. The numeric si_code is only meaningful together
// with the signal number, which is why translation is two-level.
type SigInfo struct {
	SigNum       int32      `json:"si_signo"`
	SigName      SignalName `json:"si_signo_human_readable"`
	SiCode       int32      `json:"si_code"`
	CodeName     SiCode     `json:"si_code_human_readable"`
	FaultAddress string     `json:"si_addr,omitempty"`
}

// NewSigInfo translates raw signal data into a portable SigInfo.
func NewSigInfo(signum, code int32, faultAddr string) SigInfo {
	return SigInfo{
		SigNum:       signum,
		SigName:      TranslateSignal(signum),
		SiCode:       code,
		CodeName:     TranslateSiCode(signum, code),
		FaultAddress: faultAddr,
	}
}

// SiCodeUnavailable marks reports whose si_code could not be observed.
// Signal-channel interception surfaces the signal but not its siginfo
// payload; the sentinel translates to UNKNOWN like any other unmatched code.
const SiCodeUnavailable int32 = -1 << 30

// SignalName is the portable name of a signal.
type SignalName string

const (
	SigHUP     SignalName = "SIGHUP"
	SigINT     SignalName = "SIGINT"
	SigQUIT    SignalName = "SIGQUIT"
	SigILL     SignalName = "SIGILL"
	SigTRAP    SignalName = "SIGTRAP"
	SigABRT    SignalName = "SIGABRT"
	SigBUS     SignalName = "SIGBUS"
	SigFPE     SignalName = "SIGFPE"
	SigKILL    SignalName = "SIGKILL"
	SigUSR1    SignalName = "SIGUSR1"
	SigSEGV    SignalName = "SIGSEGV"
	SigUSR2    SignalName = "SIGUSR2"
	SigPIPE    SignalName = "SIGPIPE"
	SigALRM    SignalName = "SIGALRM"
	SigTERM    SignalName = "SIGTERM"
	SigSYS     SignalName = "SIGSYS"
	SigUnknown SignalName = "UNKNOWN"
)

// SiCode is the portable classification of an si_code value.
type SiCode string

const (
	// Signal-independent codes.
	SiUser    SiCode = "SI_USER"
	SiKernel  SiCode = "SI_KERNEL"
	SiQueue   SiCode = "SI_QUEUE"
	SiTimer   SiCode = "SI_TIMER"
	SiMesgq   SiCode = "SI_MESGQ"
	SiAsyncIO SiCode = "SI_ASYNCIO"
	SiSigIO   SiCode = "SI_SIGIO"
	SiTkill   SiCode = "SI_TKILL"

	// SIGSEGV sub-codes.
	SegvMaperr SiCode = "SEGV_MAPERR"
	SegvAccerr SiCode = "SEGV_ACCERR"
	SegvBnderr SiCode = "SEGV_BNDERR"
	SegvPkuerr SiCode = "SEGV_PKUERR"

	// SIGBUS sub-codes.
	BusAdraln   SiCode = "BUS_ADRALN"
	BusAdrerr   SiCode = "BUS_ADRERR"
	BusObjerr   SiCode = "BUS_OBJERR"
	BusMceerrAR SiCode = "BUS_MCEERR_AR"
	BusMceerrAO SiCode = "BUS_MCEERR_AO"

	// SIGILL sub-codes.
	IllIllopc SiCode = "ILL_ILLOPC"
	IllIllopn SiCode = "ILL_ILLOPN"
	IllIlladr SiCode = "ILL_ILLADR"
	IllIlltrp SiCode = "ILL_ILLTRP"
	IllPrvopc SiCode = "ILL_PRVOPC"
	IllPrvreg SiCode = "ILL_PRVREG"
	IllCoproc SiCode = "ILL_COPROC"
	IllBadstk SiCode = "ILL_BADSTK"

	// SIGFPE sub-codes.
	FpeIntdiv SiCode = "FPE_INTDIV"
	FpeIntovf SiCode = "FPE_INTOVF"
	FpeFltdiv SiCode = "FPE_FLTDIV"
	FpeFltovf SiCode = "FPE_FLTOVF"
	FpeFltund SiCode = "FPE_FLTUND"
	FpeFltres SiCode = "FPE_FLTRES"
	FpeFltinv SiCode = "FPE_FLTINV"
	FpeFltsub SiCode = "FPE_FLTSUB"

	// SIGSYS sub-codes.
	SysSeccomp SiCode = "SYS_SECCOMP"

	SiCodeUnknown SiCode = "UNKNOWN"
)

// TranslateSignal maps a signal number to its portable name, UNKNOWN if the
// platform tables don't define it. Never fails.
func TranslateSignal(signum int32) SignalName {
	if name, ok := signalNames[signum]; ok {
		return name
	}
	return SigUnknown
}

// TranslateSiCode classifies an si_code for a given signal. Codes that are
// signal-independent (user-sent, kernel, timer, message queue, async I/O,
// thread-kill) are checked first; only then does the signal number select a
// sub-code table. Anything unmatched is UNKNOWN — translation is total and
// never fails.
func TranslateSiCode(signum, code int32) SiCode {
	if name, ok := signalIndependentCodes[code]; ok {
		return name
	}
	if table, ok := signalSpecificCodes[signum]; ok {
		if name, ok := table[code]; ok {
			return name
		}
	}
	return SiCodeUnknown
}
