package smoothiemap

import "errors"

// Error kinds from spec.md §7. The first two are internal sanity-check
// failures; the third signals the host mutated the map concurrently with
// the monitor's bookkeeping. All three are unrecoverable bugs in the
// caller and abort the enclosing operation -- they are not "reported
// occasions" (see Occasion), which are the monitor's normal signal path.
var (
	ErrIllegalState           = errors.New("smoothiemap: illegal state")
	ErrAssertion              = errors.New("smoothiemap: assertion failed")
	ErrConcurrentModification = errors.New("smoothiemap: concurrent modification detected")
)
