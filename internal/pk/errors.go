package pk

// ErrorKind buckets daemon error codes into the classes the coordinator
// reacts to. Anything unrecognized stays ErrorUnknown and is surfaced with
// its raw detail text.
type ErrorKind int

const (
	ErrorUnknown ErrorKind = iota
	// ErrorNetworkUnavailable: no route to the repositories. Recoverable;
	// automatic checks are deferred and retried on the next online
	// transition instead of failing hard.
	ErrorNetworkUnavailable
	// ErrorAuthenticationRequired: the daemon's policy layer refused the
	// request. Fatal to the attempt.
	ErrorAuthenticationRequired
	// ErrorRepoSignatureRequired: a repository key needs approval.
	// Surfaced as a distinct prompt, never auto-retried.
	ErrorRepoSignatureRequired
	// ErrorEulaRequired: a license agreement blocks the install. Not
	// terminal; redirected into EULA negotiation.
	ErrorEulaRequired
	// ErrorLockedOrBusy: another client holds the daemon lock. Eligible
	// for retry on the next user-triggered check.
	ErrorLockedOrBusy
	// ErrorLicenseDeclined: the user declined a required license
	// agreement, abandoning the install.
	ErrorLicenseDeclined
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorNetworkUnavailable:
		return "network-unavailable"
	case ErrorAuthenticationRequired:
		return "authentication-required"
	case ErrorRepoSignatureRequired:
		return "repo-signature-required"
	case ErrorEulaRequired:
		return "eula-required"
	case ErrorLockedOrBusy:
		return "locked-or-busy"
	case ErrorLicenseDeclined:
		return "license-declined"
	default:
		return "unknown"
	}
}

// HumanMessage is the user-facing classification shown in the status line.
func (k ErrorKind) HumanMessage() string {
	switch k {
	case ErrorNetworkUnavailable:
		return "Network is unavailable, the check will be retried once online"
	case ErrorAuthenticationRequired:
		return "Not authorized to perform this operation"
	case ErrorRepoSignatureRequired:
		return "A repository signature needs to be accepted"
	case ErrorEulaRequired:
		return "A license agreement needs to be accepted"
	case ErrorLockedOrBusy:
		return "The package manager is busy, try again later"
	case ErrorLicenseDeclined:
		return "License agreement was declined"
	default:
		return "Update operation failed"
	}
}

// classifyErrorName maps daemon wire error names (PackageKit style,
// e.g. "no-network") onto ErrorKind.
func classifyErrorName(name string) ErrorKind {
	switch name {
	case "no-network":
		return ErrorNetworkUnavailable
	case "not-authorized", "cannot-get-auth":
		return ErrorAuthenticationRequired
	case "missing-gpg-signature", "bad-gpg-signature", "gpg-failure",
		"cannot-install-repo-unsigned", "cannot-update-repo-unsigned":
		return ErrorRepoSignatureRequired
	case "no-license-agreement":
		return ErrorEulaRequired
	case "cannot-get-lock", "transaction-error":
		return ErrorLockedOrBusy
	default:
		return ErrorUnknown
	}
}
