package loader

// user process layout, fixed for every process

// UserStackTop is one past the highest stack byte of a user process.
const UserStackTop = 0x0000_7fff_ffff_f000

// UserStackPages is the size of the user stack mapped below UserStackTop.
const UserStackPages = 8

// UserProcessLinkAddr is where Build places the first segment when the
// caller does not say.
const UserProcessLinkAddr = 0x40_0000

// MaxSegments is the most loadable segments kept from one image.  Any
// further PT_LOAD entries are dropped with a warning.
const MaxSegments = 16

const (
	headerSize  = 64 // sizeof(elf.Header64)
	progHdrSize = 56 // sizeof(elf.Prog64)
)
