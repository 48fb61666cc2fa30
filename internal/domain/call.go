package domain

const ToolScheduleAppointment = "schedule_appointment"

// CallMetadata is attached to an outbound call; the provider echoes it back on every
// webhook event for that call.
type CallMetadata struct {
	InquiryID     string `json:"inquiryId,omitempty"`
	CustomerName  string `json:"customerName,omitempty"`
	PreferredArea string `json:"preferredArea,omitempty"`
	Budget        string `json:"budget,omitempty"`
	Language      string `json:"language,omitempty"`
}

type ToolParameter struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// ToolSpec is a function the voice agent may invoke mid-call.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  []ToolParameter
}

// ScheduleAppointmentTool is how the agent reports a booked site visit.
var ScheduleAppointmentTool = ToolSpec{
	Name:        ToolScheduleAppointment,
	Description: "Schedule a property site visit appointment with the customer",
	Parameters: []ToolParameter{
		{Name: "customerName", Type: "string", Description: "Customer's name"},
		{Name: "date", Type: "string", Description: "Appointment date (e.g., 'Saturday 15th January', '20/01/2024')", Required: true},
		{Name: "time", Type: "string", Description: "Appointment time (e.g., '10 AM', '2:30 PM')", Required: true},
		{Name: "location", Type: "string", Description: "Property location for the visit"},
		{Name: "notes", Type: "string", Description: "Any additional notes from the conversation"},
	},
}

// OutboundCall is the provider-agnostic request to place one AI voice call.
type OutboundCall struct {
	To           string
	CustomerName string
	Opening      string
	Instructions string
	Tools        []ToolSpec
	Metadata     CallMetadata
}

// PlacedCall is what a provider returns once it accepted the call.
type PlacedCall struct {
	ID   string
	Data map[string]any
}
