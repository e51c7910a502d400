package entity

// Resource type keys known to the engine
const (
	ResourceTypeKnowledge = "knowledge"
)

// Well-known node ids of the knowledge document lifecycle. The graph
// itself is fetched as configuration; these ids only anchor the static
// fallback table and the processing-node handoff.
const (
	NodePending    = "pending"
	NodeReviewing  = "reviewing"
	NodeProcessing = "processing"
	NodePublished  = "published"
	NodeRejected   = "rejected"
	NodeArchived   = "archived"
	NodeFailed     = "failed"
)

// Well-known action ids
const (
	ActionApprove  = "approve"
	ActionReject   = "reject"
	ActionRevoke   = "revoke"
	ActionResubmit = "resubmit"
)
