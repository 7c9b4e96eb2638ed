package market

import "chestmarket.gg/internal/protocol"

// step is one mutating action of a trade together with its compensating
// inverse. Trades are executed as an ordered step list so every trade kind
// shares the same commit/rollback harness.
type step struct {
	name   string
	code   string // rejection code when apply fails
	reason string
	apply  func() bool
	revert func() bool
}

// run applies steps in order. When a step fails, the already-applied steps
// are reverted in reverse order before the failure is reported. A failed
// revert means the three resources are out of sync: the remaining reverts
// still run so no more state is left desynced than necessary, each failure
// is logged at the highest severity, and the trade surfaces E_CONSISTENCY;
// the engine does not retry.
func (e *Engine) run(steps []step) error {
	applied := make([]step, 0, len(steps))
	for _, st := range steps {
		if st.apply() {
			applied = append(applied, st)
			continue
		}
		broken := ""
		for i := len(applied) - 1; i >= 0; i-- {
			if applied[i].revert() {
				continue
			}
			e.logger.Printf("CONSISTENCY: revert of %q failed after %q failed; resources are out of sync, operator attention required",
				applied[i].name, st.name)
			if broken == "" {
				broken = applied[i].name
			}
		}
		if broken != "" {
			return reject(protocol.ErrConsistency, "rollback of %s failed", broken)
		}
		return reject(st.code, "%s", st.reason)
	}
	return nil
}
