package instmgr

// Arbiter tracks whether the builtin default port set has been claimed during
// one supervisory run. It is an explicit value threaded through the run, not
// hidden process state, so callers and tests can construct arbitrary claim
// histories. Runs are sequential, so no locking is required.
//
// The claim is coarse: an instance with any single port equal to its builtin
// default counts as a claimant, whether that equality came from an explicit
// override or from a zero offset.
type Arbiter struct {
	claimedBy string
}

// NewArbiter creates an Arbiter with the default ports unclaimed
func NewArbiter() *Arbiter {
	return &Arbiter{}
}

// Claim records instance name as using ports p. It returns nil when the ports
// avoid the builtin defaults entirely, or when this is the first instance of
// the run to land on them. A later instance that also lands on the defaults
// receives a ConflictError naming the first claimant; that instance's
// lifecycle pass is abandoned for the remainder of the run.
func (a *Arbiter) Claim(name string, p Ports) error {
	if !p.UsesDefaults() {
		return nil
	}
	if a.claimedBy == "" || a.claimedBy == name {
		a.claimedBy = name
		return nil
	}
	return &ConflictError{Instance: name, ClaimedBy: a.claimedBy}
}

// ClaimedBy returns the instance that claimed the default ports, if any
func (a *Arbiter) ClaimedBy() (string, bool) {
	return a.claimedBy, a.claimedBy != ""
}
