//go:build darwin

package crashinfo

// Numeric values from the XNU headers (bsd/sys/signal.h). Darwin has no
// SI_KERNEL or SI_TKILL, and its signal-independent codes live in a
// different numeric range than Linux's.

var signalNames = map[int32]SignalName{
	1:  SigHUP,
	2:  SigINT,
	3:  SigQUIT,
	4:  SigILL,
	5:  SigTRAP,
	6:  SigABRT,
	8:  SigFPE,
	9:  SigKILL,
	10: SigBUS,
	11: SigSEGV,
	12: SigSYS,
	13: SigPIPE,
	14: SigALRM,
	15: SigTERM,
	30: SigUSR1,
	31: SigUSR2,
}

var signalIndependentCodes = map[int32]SiCode{
	0x10001: SiUser,
	0x10002: SiQueue,
	0x10003: SiTimer,
	0x10004: SiAsyncIO,
	0x10005: SiMesgq,
}

var signalSpecificCodes = map[int32]map[int32]SiCode{
	11: { // SIGSEGV
		1: SegvMaperr,
		2: SegvAccerr,
	},
	10: { // SIGBUS
		1: BusAdraln,
		2: BusAdrerr,
		3: BusObjerr,
	},
	4: { // SIGILL
		1: IllIllopc,
		2: IllIlltrp,
		3: IllPrvopc,
		4: IllIllopn,
		5: IllIlladr,
		6: IllPrvreg,
		7: IllCoproc,
		8: IllBadstk,
	},
	8: { // SIGFPE
		1: FpeFltdiv,
		2: FpeFltovf,
		3: FpeFltund,
		4: FpeFltres,
		5: FpeFltinv,
		6: FpeFltsub,
		7: FpeIntdiv,
		8: FpeIntovf,
	},
}
