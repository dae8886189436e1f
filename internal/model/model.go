// Package model holds the core data-model types shared by the rule engine,
// mode engine, orchestrator, and stores. These are plain structs: persistence
// concerns live in internal/store, not here.
package model

import "time"

// Platform identifies the channel a conversation originated on.
type Platform string

const (
	PlatformWeb      Platform = "web"
	PlatformCLI      Platform = "cli"
	PlatformTelegram Platform = "telegram"
	PlatformWhatsApp Platform = "whatsapp"
	PlatformAPI      Platform = "api"
)

// ConversationStatus is the lifecycle state of a Conversation.
type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationClosed    ConversationStatus = "closed"
	ConversationArchived ConversationStatus = "archived"
)

// SkipSentinel is recorded for an optional field the user explicitly declined.
const SkipSentinel = "__skip__"

// Conversation is the durable record of one user's interaction session.
type Conversation struct {
	ID             string
	Platform       Platform
	ChannelID      *string
	Name           string
	Surname        string
	Phone          string
	Email          string
	Username       string
	Status         ConversationStatus
	MessageCount   int
	LastMessageAt  time.Time
	FlowState      *FlowState
	CreatedAt      time.Time
}

// MessageRole distinguishes the speaker of a Message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Intent is one of the routing categories used to pick a handler.
type Intent string

const (
	IntentRAG       Intent = "rag"
	IntentDirect    Intent = "direct"
	IntentRule      Intent = "rule"
	IntentTool      Intent = "tool"
	IntentCharacter Intent = "character"
)

// ClassifierLayer records which cascade layer (or orchestrator shortcut)
// ultimately produced the intent for a turn.
type ClassifierLayer string

const (
	LayerFlowRule   ClassifierLayer = "flow_rule"
	LayerRulesFirst ClassifierLayer = "rules_first"
	LayerKeyword    ClassifierLayer = "keyword"
	LayerEmbedding  ClassifierLayer = "embedding"
	LayerLLM        ClassifierLayer = "llm"
	LayerCache      ClassifierLayer = "llm_cache"
)

// Source is a retrieval citation attached to an assistant message.
type Source struct {
	Title   string         `json:"title"`
	Content string         `json:"content,omitempty"`
	Score   float64        `json:"score,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Message is one turn in a Conversation. Assistant-only fields are nil/zero
// on user and system rows — see the Conversation Store invariant.
type Message struct {
	ID                 string
	ConversationID     string
	Role               MessageRole
	Content            string
	Intent             *Intent
	Confidence         *float64
	ClassifierLayer    *ClassifierLayer
	RuleMatched        *string
	ToolCalled         *string
	FallbackUsed       bool
	FallbackFromIntent *Intent
	NeedsClarification bool
	TotalMS            *int64
	Sources            []Source
	ExtraMetadata      map[string]any
	CreatedAt          time.Time
}

// MessageEvent is a granular action log entry attached to one Message.
type MessageEvent struct {
	ID        string
	MessageID string
	EventType string
	Data      map[string]any
	CreatedAt time.Time
}

const (
	EventClassificationResult = "classification_result"
	EventRuleMatched          = "rule_matched"
	EventFallbackTriggered    = "fallback_triggered"
	EventLowConfidence        = "low_confidence"
	EventRAGSearch            = "rag_search"
	EventMetrics              = "metrics"
	EventMediaProcessed       = "media_processed"
)

// ActiveMode is the kind of field-collection flow currently in progress.
type ActiveMode string

const (
	ModeAppointment ActiveMode = "appointment"
	ModeOrder       ActiveMode = "order"
	ModeReschedule  ActiveMode = "reschedule"
)

// ModeState is the progressive field-collection state for one mode.
type ModeState struct {
	Collected map[string]string `json:"collected"`
	Confirmed bool              `json:"confirmed"`
	Saved     bool              `json:"saved"`
	RefNumber string            `json:"ref_number,omitempty"`
}

// FlowState is the embedded per-conversation flow/mode snapshot.
type FlowState struct {
	ActiveMode  *ActiveMode         `json:"active_mode,omitempty"`
	Appointment *ModeState          `json:"appointment,omitempty"`
	Order       *ModeState          `json:"order,omitempty"`
	Reschedule  *ModeState          `json:"reschedule,omitempty"`
	Flow        *FlowContext        `json:"flow,omitempty"`
}

// FlowContext is the per-conversation snapshot the Rule Engine consumes and
// produces: {flow_id, current_step, data, selections}.
type FlowContext struct {
	FlowID      string              `json:"flow_id"`
	CurrentStep string              `json:"current_step"`
	Data        map[string]string   `json:"data,omitempty"`
	Selections  map[string][]string `json:"selections,omitempty"`
}

// IsEmpty reports whether the FlowContext carries no state: it is nil or
// has no FlowID.
func (f *FlowContext) IsEmpty() bool {
	return f == nil || f.FlowID == ""
}

// Rule is a deterministic matcher entry, standalone or flow-bound.
type Rule struct {
	ID              string
	Name            string
	Description     string
	TriggerPatterns []string
	ResponseTemplate string
	Variables       map[string]string
	Priority        int
	IsActive        bool

	FlowID       *string
	StepKey      *string
	RequiredStep *string
	NextSteps    map[string]string
}

// IsFlowBound reports whether this rule belongs to a flow, per the data
// model invariant (flow-bound iff FlowID is non-nil).
func (r *Rule) IsFlowBound() bool { return r.FlowID != nil }

// RecordStatus is the lifecycle state of an AppointmentRecord/OrderRecord.
type RecordStatus string

const (
	StatusPending   RecordStatus = "pending"
	StatusConfirmed RecordStatus = "confirmed"
	StatusCancelled RecordStatus = "cancelled"
)

// Appointment is a booked appointment collected via the appointment mode.
type Appointment struct {
	ID             string
	ConversationID *string
	ApptNumber     string
	Status         RecordStatus
	ContactName    string
	ContactPhone   string
	ContactEmail   string
	Service        string
	Location       string
	Artist         string
	EventDate      string
	EventTime      string
	Notes          string
	Summary        string
	ExtraFields    map[string]string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Order is a captured order collected via the order mode.
type Order struct {
	ID             string
	ConversationID *string
	Status         RecordStatus
	ContactName    string
	ContactPhone   string
	ContactEmail   string
	Summary        string
	ExtraFields    map[string]string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CalendarType distinguishes internally-tracked calendars from
// externally-synced ones (e.g. Google Calendar).
type CalendarType string

const (
	CalendarInternal CalendarType = "internal"
	CalendarExternal CalendarType = "external"
)

// TimeSlot is a working-hours interval, HH:MM strings.
type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DayHours is one day-of-week's working-hours configuration.
type DayHours struct {
	Open  bool       `json:"open"`
	Slots []TimeSlot `json:"slots"`
}

// CalendarResource is a bookable resource (an artist, a room, a service bay).
type CalendarResource struct {
	ID               string
	Name             string
	ResourceType     string
	ResourceName     string
	CalendarType     CalendarType
	WorkingHours     map[string]DayHours
	ServiceDurations map[string]int
	ExternalCalID    string
	Credentials      string // encrypted at rest, see internal/crypto
	Timezone         string
}

// BlockType classifies why a CalendarBlock exists.
type BlockType string

const (
	BlockBooked  BlockType = "booked"
	BlockBlocked BlockType = "blocked"
	BlockBreak   BlockType = "break"
	BlockBuffer  BlockType = "buffer"
)

// CalendarBlock is a persisted busy interval on a resource's calendar.
type CalendarBlock struct {
	ID                string
	CalendarResourceID string
	Date              string // YYYY-MM-DD
	StartTime         string // HH:MM
	EndTime           string // HH:MM
	BlockType         BlockType
	AppointmentID     *string
}

// LowConfidenceStrategy governs orchestrator behaviour below min_confidence.
type LowConfidenceStrategy string

const (
	StrategyFallback LowConfidenceStrategy = "fallback"
	StrategyAskUser  LowConfidenceStrategy = "ask_user"
)

// WhenRAGUnavailable governs orchestrator behaviour when RAG is disabled.
type WhenRAGUnavailable string

const (
	RAGUnavailableDirect   WhenRAGUnavailable = "direct"
	RAGUnavailableAskUser  WhenRAGUnavailable = "ask_user"
)

// FieldValidation is the canonicalisation rule applied to a collected field.
type FieldValidation string

const (
	ValidationText   FieldValidation = "text"
	ValidationPhone  FieldValidation = "phone"
	ValidationEmail  FieldValidation = "email"
	ValidationDate   FieldValidation = "date"
	ValidationTime   FieldValidation = "time"
	ValidationNumber FieldValidation = "number"
)

// ShowIf is the conditional-visibility clause on a FieldConfig.
type ShowIf struct {
	Field  string   `json:"field"`
	Values []string `json:"value"`
}

// FieldConfig is one entry in appointment_fields / order_fields.
type FieldConfig struct {
	Key        string           `json:"key"`
	Label      string           `json:"label"`
	Question   string           `json:"question"`
	Required   bool             `json:"required"`
	Options    []string         `json:"options,omitempty"`
	Validation *FieldValidation `json:"validation,omitempty"`
	ShowIf     *ShowIf          `json:"show_if,omitempty"`
}

// OrchestratorConfig is the single-row configuration governing routing,
// thresholds, field collection, persona, and outbound webhooks.
type OrchestratorConfig struct {
	RulesFirst                 bool
	FallbackToDirect            bool
	DefaultIntent               Intent
	EnabledIntents              []Intent
	MinConfidence               float64
	EmbeddingConfidenceThreshold float64
	LowConfidenceStrategy       LowConfidenceStrategy
	WhenRAGUnavailable          WhenRAGUnavailable
	LLMTimeoutSeconds           int
	MaxConversationTurns        int
	AppointmentFields           []FieldConfig
	OrderFields                 []FieldConfig
	OrderModeEnabled            bool
	Restrictions                string
	CharacterSystemPrompt       string
	AppointmentWebhookURL       string
	AppointmentWebhookSecret    string
}
