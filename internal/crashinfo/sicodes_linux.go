//go:build linux

package crashinfo

// Numeric values from the Linux uapi headers
// (include/uapi/asm-generic/siginfo.h). Codes the platform does not define
// simply have no table entry, so the lookup degrades to UNKNOWN instead of
// needing scattered conditionals.

var signalNames = map[int32]SignalName{
	1:  SigHUP,
	2:  SigINT,
	3:  SigQUIT,
	4:  SigILL,
	5:  SigTRAP,
	6:  SigABRT,
	7:  SigBUS,
	8:  SigFPE,
	9:  SigKILL,
	10: SigUSR1,
	11: SigSEGV,
	12: SigUSR2,
	13: SigPIPE,
	14: SigALRM,
	15: SigTERM,
	31: SigSYS,
}

var signalIndependentCodes = map[int32]SiCode{
	0:    SiUser,
	0x80: SiKernel,
	-1:   SiQueue,
	-2:   SiTimer,
	-3:   SiMesgq,
	-4:   SiAsyncIO,
	-5:   SiSigIO,
	-6:   SiTkill,
}

var signalSpecificCodes = map[int32]map[int32]SiCode{
	11: { // SIGSEGV
		1: SegvMaperr,
		2: SegvAccerr,
		3: SegvBnderr,
		4: SegvPkuerr,
	},
	7: { // SIGBUS
		1: BusAdraln,
		2: BusAdrerr,
		3: BusObjerr,
		4: BusMceerrAR,
		5: BusMceerrAO,
	},
	4: { // SIGILL
		1: IllIllopc,
		2: IllIllopn,
		3: IllIlladr,
		4: IllIlltrp,
		5: IllPrvopc,
		6: IllPrvreg,
		7: IllCoproc,
		8: IllBadstk,
	},
	8: { // SIGFPE
		1: FpeIntdiv,
		2: FpeIntovf,
		3: FpeFltdiv,
		4: FpeFltovf,
		5: FpeFltund,
		6: FpeFltres,
		7: FpeFltinv,
		8: FpeFltsub,
	},
	31: { // SIGSYS
		1: SysSeccomp,
	},
}
