package models

// OfferStatus is the display stage of an offer intent, derived from its markers.
type OfferStatus string

const (
	StatusInProgress            OfferStatus = "in_progress"
	StatusConsultationRequested OfferStatus = "consultation_requested"
	StatusConsultationScheduled OfferStatus = "consultation_scheduled"
	StatusConsultationCompleted OfferStatus = "consultation_completed"
	StatusUnderReview           OfferStatus = "under_review"
	StatusReady                 OfferStatus = "ready"
)

var ValidOfferStatuses = []OfferStatus{
	StatusInProgress,
	StatusConsultationRequested,
	StatusConsultationScheduled,
	StatusConsultationCompleted,
	StatusUnderReview,
	StatusReady,
}

func (s OfferStatus) IsValid() bool {
	_, ok := statusPresentation[s]
	return ok
}

// DeriveOfferStatus is the only reader of the intent's stage markers. latest is
// the most recent consultation booking and may be nil. Rules are checked in
// priority order and the first match wins.
func DeriveOfferStatus(intent *OfferIntent, latest *ConsultationBooking) OfferStatus {
	switch {
	case intent.AgentSummaryGeneratedAt != nil:
		return StatusReady
	case intent.QuestionnaireCompletedAt != nil:
		return StatusUnderReview
	case latest != nil && latest.Status == ConsultationCompleted:
		return StatusConsultationCompleted
	case intent.ConsultationScheduledAt != nil || (latest != nil && latest.Status == ConsultationScheduled):
		return StatusConsultationScheduled
	case intent.ConsultationRequested:
		return StatusConsultationRequested
	default:
		return StatusInProgress
	}
}

type presentation struct {
	label      string
	colorClass string
	buyerCTA   string
	agentCTA   string
}

var statusPresentation = map[OfferStatus]presentation{
	StatusInProgress:            {"In Progress", "bg-gray-100 text-gray-800", "Continue Setup", "Continue Setup"},
	StatusConsultationRequested: {"Consultation Requested", "bg-yellow-100 text-yellow-800", "Schedule Consultation", "Schedule Consultation"},
	StatusConsultationScheduled: {"Consultation Scheduled", "bg-blue-100 text-blue-800", "Join Consultation", "Complete Consultation"},
	StatusConsultationCompleted: {"Consultation Completed", "bg-indigo-100 text-indigo-800", "Complete Questionnaire", "Generate Summary"},
	StatusUnderReview:           {"Under Review", "bg-purple-100 text-purple-800", "View Summary", "Review & Approve"},
	StatusReady:                 {"Ready for Submission", "bg-green-100 text-green-800", "Submit Offer", "Submit Offer"},
}

// Label is the human-readable status.
func (s OfferStatus) Label() string {
	if p, ok := statusPresentation[s]; ok {
		return p.label
	}
	return string(s)
}

// ColorClass is the badge style for the status.
func (s OfferStatus) ColorClass() string {
	if p, ok := statusPresentation[s]; ok {
		return p.colorClass
	}
	return statusPresentation[StatusInProgress].colorClass
}

// NextAction is the call-to-action text. Agents and admins share the agent wording.
func (s OfferStatus) NextAction(role Role) string {
	p, ok := statusPresentation[s]
	if !ok {
		return ""
	}
	if role.IsStaff() {
		return p.agentCTA
	}
	return p.buyerCTA
}

// IsCompleted reports whether the offer belongs in the completed dashboard bucket.
func (s OfferStatus) IsCompleted() bool {
	return s == StatusReady
}

// OfferStatusView is the status payload returned wherever a status is shown.
type OfferStatusView struct {
	Status     OfferStatus `json:"status"`
	Label      string      `json:"label"`
	ColorClass string      `json:"color_class"`
	NextAction string      `json:"next_action"`
}

// StatusView derives the status of intent and renders it for role.
func StatusView(intent *OfferIntent, latest *ConsultationBooking, role Role) OfferStatusView {
	s := DeriveOfferStatus(intent, latest)
	return OfferStatusView{
		Status:     s,
		Label:      s.Label(),
		ColorClass: s.ColorClass(),
		NextAction: s.NextAction(role),
	}
}
