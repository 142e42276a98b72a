package analytics

// Keys of the merged view owned by the identity store. They always carry the
// current identity values, whatever the provider payload contains.
const (
	ViewKeyID          = "id"
	ViewKeyDisplayName = "display_name"
	ViewKeyPlatforms   = "platforms"
	ViewKeyAssignee    = "assignee"
	ViewKeyLabels      = "labels"
	ViewKeyNotes       = "notes"
)

// IdentityKeys is the fixed identity/CRM field set of a MergedView.
var IdentityKeys = []string{
	ViewKeyID,
	ViewKeyDisplayName,
	ViewKeyPlatforms,
	ViewKeyAssignee,
	ViewKeyLabels,
	ViewKeyNotes,
}

// MergedView is the per-request combination of identity and analytics data.
// It is never persisted.
type MergedView map[string]any

// Merge starts from the payload and overlays the identity field set on top.
// The order matters: payload keys win everywhere except the identity set.
// payload may be nil, in which case only identity fields are present.
func Merge(identity Identity, payload Payload) MergedView {
	view := make(MergedView, len(payload)+len(IdentityKeys))
	for k, v := range payload {
		view[k] = v
	}

	platforms := make([]string, 0, len(identity.Platforms))
	for _, p := range identity.Platforms {
		platforms = append(platforms, string(p))
	}
	labels := append([]string{}, identity.Labels...)

	view[ViewKeyID] = identity.ID
	view[ViewKeyDisplayName] = identity.DisplayName
	view[ViewKeyPlatforms] = platforms
	view[ViewKeyAssignee] = identity.Assignee
	view[ViewKeyLabels] = labels
	view[ViewKeyNotes] = identity.Notes

	return view
}

// Followers returns the merged follower count.
func (v MergedView) Followers() float64 {
	return Payload(v).Followers()
}

// Picture returns the merged profile picture URL.
func (v MergedView) Picture() string {
	return Payload(v).Picture()
}
