package certstate

// Action is the renewal decision for one evaluation cycle.
type Action string

const (
	// ActionSkip leaves the current certificate untouched.
	ActionSkip Action = "skip"

	// ActionAcquireACME obtains a publicly trusted certificate. Failure
	// falls back to self-signed when no usable certificate exists.
	ActionAcquireACME Action = "acquire-acme"

	// ActionSelfSign issues a locally trusted certificate for non-public
	// domains.
	ActionSelfSign Action = "self-sign"

	// ActionUpgradeACME attempts to replace a self-signed certificate with
	// a publicly trusted one. Failure keeps the self-signed certificate
	// without reporting an error.
	ActionUpgradeACME Action = "upgrade-acme"
)

// Decide maps a certificate state plus the force and public flags to exactly
// one action:
//
//	state         force  public  action
//	any           true   true    acquire-acme
//	any           true   false   self-sign
//	absent        false  true    acquire-acme
//	absent        false  false   self-sign
//	invalid       false  true    acquire-acme
//	invalid       false  false   self-sign
//	expiring-soon false  true    acquire-acme
//	expiring-soon false  false   self-sign
//	self-signed   false  true    upgrade-acme
//	self-signed   false  false   skip
//	valid         false  any     skip
func Decide(state State, force, public bool) Action {
	if force {
		if public {
			return ActionAcquireACME
		}
		return ActionSelfSign
	}

	switch state {
	case StateAbsent, StateInvalid, StateExpiringSoon:
		if public {
			return ActionAcquireACME
		}
		return ActionSelfSign
	case StateSelfSigned:
		if public {
			return ActionUpgradeACME
		}
		return ActionSkip
	default:
		return ActionSkip
	}
}
