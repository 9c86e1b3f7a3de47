// Package policy decides who may see and change ementas and other records.
//
// Rules:
//   - Unpublished ementas exist only for staff. Everyone else gets NotFound,
//     so the record's existence is not disclosed.
//   - Published, non-confidential ementas are public.
//   - Published, confidential ementas need the effective confidential-view
//     right (approved profile with the flag). Others get Denied: the record is
//     acknowledged but its content is withheld.
//   - Creating an ementa needs the effective publish right.
//   - Editing needs ownership or general edit rights (staff or publisher).
//
// All functions are pure and fail closed: a viewer without a profile has no
// rights beyond what anonymous visitors get.
package policy

import "github.com/jjenkins/acervo/internal/model"

// Viewer is the requester as seen by the policy. Profile is nil when the
// account has none, or when nobody is logged in.
type Viewer struct {
	Authenticated bool
	Staff         bool
	AccountID     int64
	Username      string
	Profile       *model.Profile
}

// Anonymous is the viewer of a request without a session.
func Anonymous() Viewer { return Viewer{} }

// Decision is the outcome of a read check.
type Decision int

const (
	Allow Decision = iota
	NotFound
	Denied
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case NotFound:
		return "not_found"
	case Denied:
		return "denied"
	}
	return "unknown"
}

// ViewEmenta decides whether v may read e. The published gate is checked
// before confidentiality, so an unpublished confidential record is NotFound.
func ViewEmenta(v Viewer, e *model.Ementa) Decision {
	if e == nil {
		return NotFound
	}
	if !e.Published && !v.isStaff() {
		return NotFound
	}
	if e.Confidential && !v.canViewConfidential() {
		return Denied
	}
	return Allow
}

// CanCreateEmenta requires the effective publish right.
func CanCreateEmenta(v Viewer) bool {
	return v.Authenticated && v.Profile.CanPublish()
}

// CanEditEmenta allows the creator, whatever their flags, and anyone with
// general edit rights.
func CanEditEmenta(v Viewer, e *model.Ementa) bool {
	if !v.Authenticated || e == nil {
		return false
	}
	if e.CreatedByAccount(v.AccountID) {
		return true
	}
	return hasEditRights(v)
}

// CanManageProtocolos lets any authenticated account record and edit protocolos.
func CanManageProtocolos(v Viewer) bool {
	return v.Authenticated
}

// CanApproveAccounts is reserved to staff.
func CanApproveAccounts(v Viewer) bool {
	return v.isStaff()
}

func hasEditRights(v Viewer) bool {
	return v.Staff || v.Profile.CanPublish()
}

func (v Viewer) isStaff() bool {
	return v.Authenticated && v.Staff
}

func (v Viewer) canViewConfidential() bool {
	return v.Authenticated && v.Profile.CanViewConfidential()
}

// Visibility is the list-side form of ViewEmenta: which ementas may appear
// in a listing for a viewer.
type Visibility struct {
	IncludeUnpublished  bool
	IncludeConfidential bool
}

// ListVisibility derives the listing filter for v. Records the viewer would
// get NotFound or Denied for are left out.
func ListVisibility(v Viewer) Visibility {
	return Visibility{
		IncludeUnpublished:  v.isStaff(),
		IncludeConfidential: v.canViewConfidential(),
	}
}

// Allows is the predicate form of the filter.
func (vis Visibility) Allows(e *model.Ementa) bool {
	if !e.Published && !vis.IncludeUnpublished {
		return false
	}
	if e.Confidential && !vis.IncludeConfidential {
		return false
	}
	return true
}
